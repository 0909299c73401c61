// Package framebuf holds the 1bpp frame that is streamed to the e-paper
// controller.
//
// Packing rules:
//
//   - a set bit is white (image1bit.On), a cleared bit is black ink
//     (image1bit.Off);
//   - the physical panel width is rounded up to a multiple of 8, so a
//     122x250 panel always occupies 16*250 = 4000 bytes;
//   - coordinates are always expressed in the visual frame, after rotation.
package framebuf

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// ErrOutOfBounds is returned for pixel coordinates outside the visual frame.
var ErrOutOfBounds = errors.New("framebuf: pixel out of bounds")

// White and Black are the byte values that fill a whole buffer with one
// color.
const (
	White byte = 0xFF
	Black byte = 0x00
)

// Framebuffer is a bit-packed monochrome frame. It is not safe for concurrent
// use; Clone it to hand a snapshot to another goroutine.
type Framebuffer struct {
	width       int
	height      int
	orientation Orientation
	addr        addressing
	pix         []byte
}

// New allocates a white frame for a panel that is panelWidth x panelHeight
// pixels in its native (portrait) layout.
func New(panelWidth, panelHeight int, o Orientation) *Framebuffer {
	padded := (panelWidth + 7) / 8 * 8

	f := &Framebuffer{
		orientation: o,
		addr:        o.addressing(),
		pix:         make([]byte, PlaneSize(panelWidth, panelHeight)),
	}

	switch o {
	case Landscape:
		f.width, f.height = panelHeight, padded
	default:
		f.width, f.height = padded, panelHeight
	}

	f.Clear(White)
	return f
}

// PlaneSize returns the number of bytes needed for one full panel plane.
func PlaneSize(panelWidth, panelHeight int) int {
	return panelHeight * ((panelWidth + 7) / 8)
}

// Width of the visual frame in pixels.
func (f *Framebuffer) Width() int { return f.width }

// Height of the visual frame in pixels.
func (f *Framebuffer) Height() int { return f.height }

// Orientation returns the addressing scheme of the frame.
func (f *Framebuffer) Orientation() Orientation { return f.orientation }

// Clear fills every byte of the buffer with value.
func (f *Framebuffer) Clear(value byte) {
	for i := range f.pix {
		f.pix[i] = value
	}
}

// SetPixel sets pixel (x, y) of the visual frame.
func (f *Framebuffer) SetPixel(x, y int, c image1bit.Bit) error {
	if !f.inBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrOutOfBounds, x, y, f.width, f.height)
	}
	i, mask := f.addr.locate(x, y, f.width)
	if c {
		f.pix[i] |= mask
	} else {
		f.pix[i] &^= mask
	}
	return nil
}

// Pixel reads back pixel (x, y) of the visual frame.
func (f *Framebuffer) Pixel(x, y int) (image1bit.Bit, error) {
	if !f.inBounds(x, y) {
		return image1bit.Off, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrOutOfBounds, x, y, f.width, f.height)
	}
	i, mask := f.addr.locate(x, y, f.width)
	return image1bit.Bit(f.pix[i]&mask != 0), nil
}

// Bytes returns the underlying buffer. The slice aliases the frame and must
// not be modified by the caller.
func (f *Framebuffer) Bytes() []byte {
	return f.pix
}

// Transfer returns a copy of the buffer in controller RAM order.
func (f *Framebuffer) Transfer() []byte {
	return f.addr.transfer(f.pix, f.width, f.height)
}

// Clone returns an independent copy of the frame.
func (f *Framebuffer) Clone() *Framebuffer {
	c := *f
	c.pix = make([]byte, len(f.pix))
	copy(c.pix, f.pix)
	return &c
}

func (f *Framebuffer) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.width && y < f.height
}

// ColorModel implements image.Image.
func (f *Framebuffer) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements image.Image.
func (f *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.width, f.height)
}

// At implements image.Image.
func (f *Framebuffer) At(x, y int) color.Color {
	b, err := f.Pixel(x, y)
	if err != nil {
		return image1bit.Off
	}
	return b
}

// Set implements draw.Image. As for every image.Image, pixels outside Bounds
// are silently dropped; use SetPixel to get an error instead.
func (f *Framebuffer) Set(x, y int, c color.Color) {
	if !f.inBounds(x, y) {
		return
	}
	_ = f.SetPixel(x, y, image1bit.BitModel.Convert(c).(image1bit.Bit))
}

var _ draw.Image = (*Framebuffer)(nil)
