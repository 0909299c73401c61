// Package epd drives a Waveshare 2.13" V3 e-paper panel (SSD1680-class
// controller) over a command/data serial bus.
//
// The driver is a small state machine:
//
//	Uninitialized -> Resetting -> Initializing -> Idle
//	Idle -> TransferringImage -> Refreshing(full) -> Idle
//	Idle -> Resetting -> Initializing -> Refreshing(partial) -> Idle
//	Idle -> Sleeping
//
// Any bus or busy-line failure drops the driver back to Uninitialized; only
// Init is accepted from there, so a half-applied register sequence is never
// followed by another refresh.
package epd

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"time"

	"epdnews/internal/framebuf"
	appLog "epdnews/internal/log"
)

var (
	// ErrBusyTimeout is returned when the busy line does not clear within the
	// configured timeout. The panel is considered unresponsive.
	ErrBusyTimeout = errors.New("epd: panel unresponsive, busy line never cleared")
	// ErrNotReady is returned when an operation is attempted outside the Idle
	// state. Call Init first.
	ErrNotReady = errors.New("epd: panel not initialized")
)

// State is the driver state.
type State uint8

const (
	Uninitialized State = iota
	Resetting
	Initializing
	Idle
	TransferringImage
	RefreshingFull
	RefreshingPartial
	Sleeping
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Resetting:
		return "resetting"
	case Initializing:
		return "initializing"
	case Idle:
		return "idle"
	case TransferringImage:
		return "transferring-image"
	case RefreshingFull:
		return "refreshing(full)"
	case RefreshingPartial:
		return "refreshing(partial)"
	case Sleeping:
		return "sleeping"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Frame is an image the driver can transfer. framebuf.Framebuffer implements
// it.
type Frame interface {
	image.Image
	// Transfer returns the plane in controller RAM order.
	Transfer() []byte
}

// Timing defaults.
const (
	DefaultBusyPoll    = 10 * time.Millisecond
	DefaultBusyTimeout = 30 * time.Second
)

// Opts defines the panel geometry and driver tuning.
type Opts struct {
	// Width and Height of the panel in its native portrait layout.
	Width  int
	Height int

	// Orientation selects the data entry mode. It must match the frames
	// passed to the Display calls.
	Orientation framebuf.Orientation

	// BusyPoll is the interval between busy-line samples.
	BusyPoll time.Duration
	// BusyTimeout bounds every busy wait.
	BusyTimeout time.Duration

	// OnState, if set, is called on every state transition.
	OnState func(from, to State)
}

// EPD2in13v3 contains the geometry of the Waveshare 2.13" V3 panel.
var EPD2in13v3 = Opts{
	Width:       122,
	Height:      250,
	Orientation: framebuf.Landscape,
}

// Driver is the high-level handle to the panel.
type Driver struct {
	t     Transport
	opts  Opts
	state State
}

// New returns a Driver in the Uninitialized state. No I/O is performed.
func New(t Transport, opts *Opts) (*Driver, error) {
	if t == nil {
		return nil, errors.New("epd: nil transport")
	}
	if opts == nil {
		opts = &EPD2in13v3
	}
	o := *opts
	if o.Width <= 0 || o.Height <= 0 {
		return nil, fmt.Errorf("epd: invalid panel size %dx%d", o.Width, o.Height)
	}
	if o.BusyPoll <= 0 {
		o.BusyPoll = DefaultBusyPoll
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = DefaultBusyTimeout
	}
	return &Driver{t: t, opts: o}, nil
}

// State returns the current driver state.
func (d *Driver) State() State {
	return d.state
}

// String returns a string containing configuration information.
func (d *Driver) String() string {
	return fmt.Sprintf("epd.Driver{%dx%d, %s, %s}", d.opts.Width, d.opts.Height, d.opts.Orientation, d.state)
}

// paddedWidth is the panel width rounded up to whole bytes.
func (d *Driver) paddedWidth() int {
	return (d.opts.Width + 7) / 8 * 8
}

func (d *Driver) planeSize() int {
	return framebuf.PlaneSize(d.opts.Width, d.opts.Height)
}

func (d *Driver) entryMode() byte {
	if d.opts.Orientation == framebuf.Landscape {
		return entryModeLandscape
	}
	return entryModePortrait
}

func (d *Driver) newErrorHandler() *errorHandler {
	return &errorHandler{
		t:         d.t,
		busyPoll:  d.opts.BusyPoll,
		busyLimit: int(d.opts.BusyTimeout / d.opts.BusyPoll),
	}
}

func (d *Driver) setState(s State) {
	if s == d.state {
		return
	}
	from := d.state
	d.state = s
	appLog.Debug("epd state", "from", from, "to", s)
	if d.opts.OnState != nil {
		d.opts.OnState(from, s)
	}
}

// finish settles the state after an operation: back to next on success,
// Uninitialized on failure.
func (d *Driver) finish(op string, eh *errorHandler, next State) error {
	if eh.err != nil {
		d.setState(Uninitialized)
		appLog.Error("epd operation failed; re-initialization required", eh.err, "op", op)
		return fmt.Errorf("epd: %s: %w", op, eh.err)
	}
	d.setState(next)
	return nil
}

func (d *Driver) requireIdle(op string) error {
	if d.state != Idle {
		return fmt.Errorf("epd: %s in state %s: %w", op, d.state, ErrNotReady)
	}
	return nil
}

// reset performs the hardware reset handshake: high, low, high with
// 20/2/20 ms holds.
func (d *Driver) reset(eh *errorHandler) {
	eh.setPin(PinReset, true)
	eh.sleep(20 * time.Millisecond)
	eh.setPin(PinReset, false)
	eh.sleep(2 * time.Millisecond)
	eh.setPin(PinReset, true)
	eh.sleep(20 * time.Millisecond)
}

// Init resets the controller and programs it for the whole panel, loading
// the Partial waveform table. It is valid from any state.
func (d *Driver) Init() error {
	eh := d.newErrorHandler()

	d.setState(Resetting)
	eh.setPin(PinCS, true)
	d.reset(eh)
	eh.sleep(100 * time.Millisecond)
	if eh.err != nil {
		return d.finish("init", eh, Idle)
	}

	d.setState(Initializing)
	initDisplay(eh, d.paddedWidth(), d.opts.Height, d.entryMode(), BytesFor(Partial))

	if err := d.finish("init", eh, Idle); err != nil {
		return err
	}
	appLog.Info("epd initialized", "width", d.opts.Width, "height", d.opts.Height, "orientation", d.opts.Orientation)
	return nil
}

// Clear fills the controller RAM with color and runs a full refresh.
func (d *Driver) Clear(color byte) error {
	return d.displayFull("clear", bytes.Repeat([]byte{color}, d.planeSize()), writeRAMBW)
}

// Display transfers f and runs a full refresh.
func (d *Driver) Display(f Frame) error {
	return d.displayFull("display", f.Transfer(), writeRAMBW)
}

// DisplayBase writes f into both controller RAM planes and runs a full
// refresh, giving subsequent partial refreshes a matching reference image.
func (d *Driver) DisplayBase(f Frame) error {
	return d.displayFull("display base", f.Transfer(), writeRAMBW, writeRAMRed)
}

func (d *Driver) displayFull(op string, buf []byte, cmds ...byte) error {
	if err := d.requireIdle(op); err != nil {
		return err
	}
	if len(buf) != d.planeSize() {
		return fmt.Errorf("epd: %s: image is %d bytes, want %d", op, len(buf), d.planeSize())
	}

	eh := d.newErrorHandler()

	d.setState(TransferringImage)
	for _, cmd := range cmds {
		writeImage(eh, cmd, buf)
	}
	if eh.err != nil {
		return d.finish(op, eh, Idle)
	}

	d.setState(RefreshingFull)
	turnOnDisplay(eh, updateFull)

	return d.finish(op, eh, Idle)
}

// DisplayPartial transfers f and runs a partial refresh. It pulses reset,
// uploads the Full waveform table and reprograms the whole-panel window
// before the transfer.
func (d *Driver) DisplayPartial(f Frame) error {
	const op = "display partial"

	if err := d.requireIdle(op); err != nil {
		return err
	}
	buf := f.Transfer()
	if len(buf) != d.planeSize() {
		return fmt.Errorf("epd: %s: image is %d bytes, want %d", op, len(buf), d.planeSize())
	}

	eh := d.newErrorHandler()

	d.setState(Resetting)
	eh.setPin(PinReset, false)
	eh.sleep(1 * time.Millisecond)
	eh.setPin(PinReset, true)
	if eh.err != nil {
		return d.finish(op, eh, Idle)
	}

	d.setState(Initializing)
	preparePartial(eh, BytesFor(Full))
	if eh.err != nil {
		return d.finish(op, eh, Idle)
	}

	d.setState(RefreshingPartial)
	setWindow(eh, 0, 0, d.paddedWidth()-1, d.opts.Height-1)
	setCursor(eh, 0, 0)
	writeImage(eh, writeRAMBW, buf)
	turnOnDisplay(eh, updatePartial)

	return d.finish(op, eh, Idle)
}

// Sleep puts the controller into deep sleep. Only Init is accepted
// afterwards.
func (d *Driver) Sleep() error {
	if err := d.requireIdle("sleep"); err != nil {
		return err
	}

	eh := d.newErrorHandler()
	enterDeepSleep(eh)
	eh.sleep(100 * time.Millisecond)

	if err := d.finish("sleep", eh, Sleeping); err != nil {
		return err
	}
	appLog.Info("epd sleeping")
	return nil
}
