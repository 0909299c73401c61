package framebuf

import "fmt"

// Orientation selects how visual coordinates map onto the packed buffer and in
// which order the buffer is streamed to the controller.
//
// Both orientations store the same number of bytes for a given panel; they
// differ only in bit/byte traversal order.
type Orientation int

const (
	// Portrait keeps the panel's native layout: rows of MSB-first bytes
	// (MONO_HLSB). The visual frame is paddedWidth x height.
	Portrait Orientation = iota
	// Landscape rotates the frame: bytes run along a row and each byte holds
	// eight vertically stacked pixels, LSB at the top (MONO_VLSB). The visual
	// frame is height x paddedWidth.
	Landscape
)

// ParseOrientation accepts "portrait" or "landscape".
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "portrait":
		return Portrait, nil
	case "landscape", "":
		return Landscape, nil
	default:
		return 0, fmt.Errorf("framebuf: unknown orientation %q", s)
	}
}

func (o Orientation) String() string {
	switch o {
	case Portrait:
		return "portrait"
	case Landscape:
		return "landscape"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

// addressing is the per-orientation strategy used by Framebuffer.
type addressing interface {
	// locate returns the byte index and bit mask of pixel (x, y) in a frame
	// that is width pixels wide.
	locate(x, y, width int) (int, byte)
	// transfer returns buf in the order the controller RAM expects it.
	transfer(buf []byte, width, height int) []byte
}

func (o Orientation) addressing() addressing {
	if o == Landscape {
		return vlsb{}
	}
	return hlsb{}
}

// hlsb is MONO_HLSB: byteIndex = y*rowBytes + x/8, mask = 0x80 >> (x%8).
type hlsb struct{}

func (hlsb) locate(x, y, width int) (int, byte) {
	rowBytes := (width + 7) / 8
	return y*rowBytes + x>>3, byte(0x80 >> (x & 7))
}

func (hlsb) transfer(buf []byte, _, _ int) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}

// vlsb is MONO_VLSB: byteIndex = (y/8)*width + x, mask = 1 << (y%8).
type vlsb struct{}

func (vlsb) locate(x, y, width int) (int, byte) {
	return (y>>3)*width + x, byte(1 << (y & 7))
}

// transfer walks the byte pages from the last one to the first, each page
// left to right. With data entry mode 0x07 this lands the rotated frame
// upright on the panel.
func (vlsb) transfer(buf []byte, width, height int) []byte {
	pages := (height + 7) / 8
	out := make([]byte, 0, len(buf))
	for j := pages - 1; j >= 0; j-- {
		out = append(out, buf[j*width:(j+1)*width]...)
	}
	return out
}
