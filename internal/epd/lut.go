package epd

import "fmt"

// TableSize is the length of a waveform table including its trailer.
const TableSize = 159

// lutSize is the number of bytes uploaded with writeLutRegister.
const lutSize = 153

// WaveformTable is a controller waveform (LUT) followed by its trailer:
//
//	[0:153]   LUT entries, uploaded verbatim
//	[153]     end option (frame count / control)
//	[154]     gate driving voltage
//	[155:158] source driving voltages VSH1, VSH2, VSL
//	[158]     VCOM
//
// It is an array so every caller receives its own copy.
type WaveformTable [TableSize]byte

// LUT returns the bytes sent after writeLutRegister.
func (w WaveformTable) LUT() []byte { return w[:lutSize] }

// EndOption returns the byte sent after endOptionEOPT.
func (w WaveformTable) EndOption() byte { return w[153] }

// GateVoltage returns the byte sent after gateDrivingVoltageControl.
func (w WaveformTable) GateVoltage() byte { return w[154] }

// SourceVoltages returns the three bytes sent after sourceDrivingVoltageControl.
func (w WaveformTable) SourceVoltages() []byte { return w[155:158] }

// VCOM returns the byte sent after writeVcomRegister.
func (w WaveformTable) VCOM() byte { return w[158] }

// Kind selects one of the two compiled-in tables.
type Kind uint8

const (
	// Full is uploaded before every partial refresh cycle.
	Full Kind = iota
	// Partial is loaded once during initialization as the steady-state table.
	Partial
)

func (k Kind) String() string {
	switch k {
	case Full:
		return "full"
	case Partial:
		return "partial"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// BytesFor returns the waveform table registered for kind. Unknown kinds
// fall back to the Partial table.
//
// The slot names follow the vendor driver: the Full slot holds the fast
// partial-update waveform and the Partial slot holds the 20-30 °C full-update
// waveform. Init loads Partial, DisplayPartial loads Full.
func BytesFor(kind Kind) WaveformTable {
	if kind == Full {
		return fullTable
	}
	return partialTable
}

// Factory calibration for the Waveshare 2.13" V3 panel.
var fullTable = WaveformTable{
	0x00, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x80, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x40, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x14, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x00, 0x00, 0x00,
	0x22, 0x17, 0x41, 0x00, 0x32, 0x36,
}

var partialTable = WaveformTable{
	0x80, 0x4A, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x40, 0x4A, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x80, 0x4A, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x40, 0x4A, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x0F, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x0F, 0x00, 0x00, 0x0F, 0x00, 0x00, 0x02,
	0x0F, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x00, 0x00, 0x00,
	0x22, 0x17, 0x41, 0x00, 0x32, 0x36,
}
