package epd

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Wiring of the Waveshare e-Paper HAT on a Raspberry Pi header.
const (
	DefaultResetPin = "GPIO17"
	DefaultDCPin    = "GPIO25"
	DefaultCSPin    = "GPIO8"
	DefaultBusyPin  = "GPIO24"
	DefaultSPIHz    = 4_000_000
)

// Wiring names the SPI port and the GPIO lines the panel is attached to.
// Empty fields take the Default* values.
type Wiring struct {
	SPIPort string
	SPIHz   int64
	Reset   string
	DC      string
	CS      string
	Busy    string
}

// PeriphTransport is a Transport backed by periph.io SPI and GPIO.
type PeriphTransport struct {
	port spi.PortCloser
	c    spi.Conn

	rst  gpio.PinOut
	dc   gpio.PinOut
	cs   gpio.PinOut
	busy gpio.PinIn

	maxTxSize int
}

// OpenPeriph initializes periph.io, opens the SPI port and configures the
// control lines.
func OpenPeriph(w Wiring) (*PeriphTransport, error) {
	if w.SPIHz <= 0 {
		w.SPIHz = DefaultSPIHz
	}
	if w.Reset == "" {
		w.Reset = DefaultResetPin
	}
	if w.DC == "" {
		w.DC = DefaultDCPin
	}
	if w.CS == "" {
		w.CS = DefaultCSPin
	}
	if w.Busy == "" {
		w.Busy = DefaultBusyPin
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: periph host init failed: %w", err)
	}

	// "" opens the first SPI port, /dev/spidev0.0 on a Raspberry Pi.
	port, err := spireg.Open(w.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("epd: failed to open SPI port: %w", err)
	}

	c, err := port.Connect(physic.Frequency(w.SPIHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: failed to connect SPI: %w", err)
	}

	gpioOut := func(name string, initial gpio.Level) (gpio.PinOut, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("epd: gpio %s not found", name)
		}
		if err := p.Out(initial); err != nil {
			return nil, fmt.Errorf("epd: gpio %s Out failed: %w", name, err)
		}
		return p, nil
	}

	t := &PeriphTransport{port: port, c: c}
	if t.rst, err = gpioOut(w.Reset, gpio.High); err != nil {
		_ = port.Close()
		return nil, err
	}
	if t.dc, err = gpioOut(w.DC, gpio.Low); err != nil {
		_ = port.Close()
		return nil, err
	}
	if t.cs, err = gpioOut(w.CS, gpio.High); err != nil {
		_ = port.Close()
		return nil, err
	}

	busy := gpioreg.ByName(w.Busy)
	if busy == nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: gpio %s not found", w.Busy)
	}
	if err := busy.In(gpio.PullUp, gpio.NoEdge); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: gpio %s In failed: %w", w.Busy, err)
	}
	t.busy = busy

	if limits, ok := c.(conn.Limits); ok {
		t.maxTxSize = limits.MaxTxSize()
	}
	if t.maxTxSize <= 0 {
		t.maxTxSize = 4096
	}
	return t, nil
}

func (t *PeriphTransport) pinOut(p Pin) (gpio.PinOut, error) {
	switch p {
	case PinReset:
		return t.rst, nil
	case PinDC:
		return t.dc, nil
	case PinCS:
		return t.cs, nil
	default:
		return nil, fmt.Errorf("epd: %s is not an output", p)
	}
}

// SetPin implements Transport.
func (t *PeriphTransport) SetPin(p Pin, high bool) error {
	out, err := t.pinOut(p)
	if err != nil {
		return err
	}
	return out.Out(gpio.Level(high))
}

// GetPin implements Transport.
func (t *PeriphTransport) GetPin(p Pin) (bool, error) {
	if p != PinBusy {
		return false, fmt.Errorf("epd: %s is not an input", p)
	}
	return t.busy.Read() == gpio.High, nil
}

// Write implements Transport. Buffers larger than the port's transfer limit
// are split.
func (t *PeriphTransport) Write(b []byte) error {
	for len(b) > 0 {
		n := len(b)
		if n > t.maxTxSize {
			n = t.maxTxSize
		}
		if err := t.c.Tx(b[:n], nil); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// Sleep implements Transport.
func (t *PeriphTransport) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Close releases the SPI port. GPIO lines need no explicit release.
func (t *PeriphTransport) Close() error {
	return t.port.Close()
}

var _ Transport = (*PeriphTransport)(nil)
