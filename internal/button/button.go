// Package button reads the user-abort signal polled by the display session
// between pages.
package button

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	appLog "epdnews/internal/log"
)

// Reader abstracts how the abort request is obtained. This allows a GPIO
// push button on the Raspberry Pi, a terminal fallback for -render-only runs
// and a reader that never fires when nothing is wired.
type Reader interface {
	// Pressed reports whether an abort is currently requested.
	Pressed(ctx context.Context) (bool, error)
}

// Func adapts a function to a Reader.
type Func func(ctx context.Context) (bool, error)

// Pressed implements Reader.
func (f Func) Pressed(ctx context.Context) (bool, error) {
	return f(ctx)
}

// noneReader is used when no button is configured.
type noneReader struct{}

// None returns a Reader that is never pressed.
func None() Reader {
	return noneReader{}
}

func (noneReader) Pressed(context.Context) (bool, error) {
	return false, nil
}

// gpioReader samples a push button wired to a GPIO line.
type gpioReader struct {
	pin       gpio.PinIn
	activeLow bool
}

// NewGPIOReader configures the named line (e.g. "GPIO21") as an input. An
// active-low button pulls the line to ground when pressed and gets the
// internal pull-up; an active-high one gets the pull-down.
func NewGPIOReader(name string, activeLow bool) (Reader, error) {
	if name == "" {
		return nil, errors.New("button: gpio name is empty")
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("button: periph host init failed: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("button: gpio %s not found", name)
	}
	pull := gpio.PullDown
	if activeLow {
		pull = gpio.PullUp
	}
	if err := p.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("button: gpio %s In failed: %w", name, err)
	}
	return &gpioReader{pin: p, activeLow: activeLow}, nil
}

// Pressed implements Reader.
func (r *gpioReader) Pressed(context.Context) (bool, error) {
	level := r.pin.Read()
	if r.activeLow {
		return level == gpio.Low, nil
	}
	return level == gpio.High, nil
}

// lineReader latches once a line is read from its input.
type lineReader struct {
	pressed atomic.Bool
}

// NewLineReader returns a Reader that becomes pressed for good once a line
// (e.g. Enter on a terminal) is read from in.
func NewLineReader(in io.Reader) Reader {
	r := &lineReader{}
	go func() {
		s := bufio.NewScanner(in)
		if s.Scan() {
			r.pressed.Store(true)
		}
	}()
	return r
}

// Pressed implements Reader.
func (r *lineReader) Pressed(context.Context) (bool, error) {
	return r.pressed.Load(), nil
}

// DefaultReader returns the Reader that should be used by the main program.
//
// An empty name means no button is wired. If the line cannot be opened, for
// example off the Raspberry Pi, the error is logged and a reader that never
// fires is returned so the display loop keeps running.
func DefaultReader(name string, activeLow bool) Reader {
	if name == "" {
		return None()
	}
	r, err := NewGPIOReader(name, activeLow)
	if err != nil {
		appLog.Error("button unavailable; abort disabled", err, "gpio", name)
		return None()
	}
	appLog.Info("button ready", "gpio", name, "active_low", activeLow)
	return r
}
