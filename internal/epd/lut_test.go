package epd

import (
	"testing"
)

func TestBytesFor(t *testing.T) {
	full := BytesFor(Full)
	partial := BytesFor(Partial)

	if len(full) != TableSize || len(partial) != TableSize {
		t.Fatalf("table sizes = %d, %d; want %d", len(full), len(partial), TableSize)
	}
	if full == partial {
		t.Error("Full and Partial tables are identical")
	}
	if got := BytesFor(Kind(42)); got != partial {
		t.Error("unknown kind does not fall back to Partial")
	}

	// First entries identify the reference waveforms.
	if full[1] != 0x40 || full[12] != 0x80 {
		t.Errorf("Full table starts % x, want fast partial waveform", full[:13])
	}
	if partial[0] != 0x80 || partial[1] != 0x4A {
		t.Errorf("Partial table starts % x, want 20-30 °C waveform", partial[:2])
	}
}

func TestBytesForIsolated(t *testing.T) {
	a := BytesFor(Full)
	a[0] = 0xEE
	a.LUT()[1] = 0xEE

	if b := BytesFor(Full); b[0] != 0x00 || b[1] != 0x40 {
		t.Errorf("registry table was modified through a returned copy: % x", b[:2])
	}
}

func TestWaveformTableTrailer(t *testing.T) {
	for _, kind := range []Kind{Full, Partial} {
		t.Run(kind.String(), func(t *testing.T) {
			w := BytesFor(kind)

			if got := len(w.LUT()); got != 153 {
				t.Errorf("len(LUT()) = %d, want 153", got)
			}
			if got := w.EndOption(); got != 0x22 {
				t.Errorf("EndOption() = %#x, want 0x22", got)
			}
			if got := w.GateVoltage(); got != 0x17 {
				t.Errorf("GateVoltage() = %#x, want 0x17", got)
			}
			if got := w.SourceVoltages(); len(got) != 3 || got[0] != 0x41 || got[1] != 0x00 || got[2] != 0x32 {
				t.Errorf("SourceVoltages() = % x, want 41 00 32", got)
			}
			if got := w.VCOM(); got != 0x36 {
				t.Errorf("VCOM() = %#x, want 0x36", got)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	for _, tc := range []struct {
		k    Kind
		want string
	}{
		{Full, "full"},
		{Partial, "partial"},
		{Kind(9), "Kind(9)"},
	} {
		if got := tc.k.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", uint8(tc.k), got, tc.want)
		}
	}
}
