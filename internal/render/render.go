// Package render rasterizes wrapped text lines onto a 1-bit frame.
package render

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// DefaultLineStep is the vertical distance between baselines, in pixels.
const DefaultLineStep = 10

// Built-in face names accepted by LoadFace instead of a file on disk.
const (
	// BuiltinMono is the Go Mono TrueType face bundled with x/image.
	BuiltinMono = "gomono"
	// Builtin7x13 is basicfont.Face7x13. It is taller than DefaultLineStep,
	// so use it with a line step of at least 13.
	Builtin7x13 = "7x13"
)

// Renderer draws black text lines, one baseline every step pixels.
type Renderer struct {
	face font.Face
	step int
}

// New returns a Renderer. A nil face selects Face8x8 and a non-positive
// step selects DefaultLineStep.
func New(face font.Face, step int) *Renderer {
	if face == nil {
		face = Face8x8
	}
	if step <= 0 {
		step = DefaultLineStep
	}
	return &Renderer{face: face, step: step}
}

// Step returns the baseline distance.
func (r *Renderer) Step() int {
	return r.step
}

// DrawLines draws lines onto dst. Line i has its baseline at (i+1)*step and
// starts at x=0; the background is left untouched. Text falling outside dst
// is clipped.
func (r *Renderer) DrawLines(dst draw.Image, lines []string) {
	b := dst.Bounds()
	d := font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{image1bit.Off},
		Face: r.face,
	}
	for i, line := range lines {
		if line == "" {
			continue
		}
		d.Dot = fixed.P(b.Min.X, b.Min.Y+(i+1)*r.step)
		d.DrawString(line)
	}
}

// LoadFace returns the face described by path and size. An empty path
// returns Face8x8 and the Builtin* names their faces; anything else is read
// as a TrueType file.
func LoadFace(path string, size float64) (font.Face, error) {
	switch path {
	case "":
		return Face8x8, nil
	case Builtin7x13:
		return basicfont.Face7x13, nil
	}
	if size <= 0 {
		size = 10
	}

	var ttf []byte
	if path == BuiltinMono {
		ttf = gomono.TTF
	} else {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("render: read font: %w", err)
		}
		ttf = b
	}

	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("render: parse font %s: %w", path, err)
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}
