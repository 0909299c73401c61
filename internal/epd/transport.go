package epd

import (
	"fmt"
	"time"
)

// Pin names one of the four control lines of the panel.
type Pin uint8

const (
	// PinReset is the active-low hardware reset output.
	PinReset Pin = iota
	// PinDC selects command (low) or data (high) for bus bytes.
	PinDC
	// PinCS is the active-low chip select output.
	PinCS
	// PinBusy is the controller's busy input, high while an update runs.
	PinBusy
)

func (p Pin) String() string {
	switch p {
	case PinReset:
		return "RST"
	case PinDC:
		return "DC"
	case PinCS:
		return "CS"
	case PinBusy:
		return "BUSY"
	default:
		return fmt.Sprintf("Pin(%d)", uint8(p))
	}
}

// Transport is the raw bus and pin capability consumed by the driver. The
// driver owns it exclusively; implementations need not be safe for
// concurrent use.
type Transport interface {
	// SetPin drives an output line; true is high.
	SetPin(p Pin, high bool) error
	// GetPin samples an input line; true is high.
	GetPin(p Pin) (bool, error)
	// Write clocks bytes out on the serial bus.
	Write(b []byte) error
	// Sleep blocks for d.
	Sleep(d time.Duration)
}
