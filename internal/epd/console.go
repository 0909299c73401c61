package epd

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

// ConsoleOpts configures a Console.
type ConsoleOpts struct {
	// W receives the output. Defaults to a colorable stdout.
	W io.Writer
	// Scale is the number of panel pixels per terminal cell along each axis.
	// Defaults to 4.
	Scale int
	// Palette defaults to ansi256.Default.
	Palette *ansi256.Palette
}

// Console is a panel stand-in that prints every refreshed frame to a
// terminal using ANSI colors. It accepts the same call sequence as Driver,
// so it is used for -render-only runs.
type Console struct {
	w       io.Writer
	scale   int
	palette ansi256.Palette

	state State
	buf   bytes.Buffer
}

// NewConsole returns a Console in the Uninitialized state.
func NewConsole(opts *ConsoleOpts) *Console {
	if opts == nil {
		opts = &ConsoleOpts{}
	}
	c := &Console{w: opts.W, scale: opts.Scale}
	if c.w == nil {
		c.w = colorable.NewColorableStdout()
	}
	if c.scale <= 0 {
		c.scale = 4
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	c.palette = *p
	return c
}

func (c *Console) String() string {
	return "Console"
}

// State returns the emulated driver state.
func (c *Console) State() State {
	return c.state
}

// Init implements the panel interface.
func (c *Console) Init() error {
	c.state = Idle
	return nil
}

// Clear prints a blank frame of the given fill.
func (c *Console) Clear(fill byte) error {
	if c.state != Idle {
		return fmt.Errorf("epd: clear in state %s: %w", c.state, ErrNotReady)
	}
	_, err := fmt.Fprintf(c.w, "\033[0m-- clear 0x%02X --\n", fill)
	return err
}

// Display prints f.
func (c *Console) Display(f Frame) error {
	return c.show(f)
}

// DisplayPartial prints f.
func (c *Console) DisplayPartial(f Frame) error {
	return c.show(f)
}

// Sleep implements the panel interface.
func (c *Console) Sleep() error {
	if c.state != Idle {
		return fmt.Errorf("epd: sleep in state %s: %w", c.state, ErrNotReady)
	}
	c.state = Sleeping
	_, err := c.w.Write([]byte("\033[0m-- sleep --\n"))
	return err
}

func (c *Console) show(f Frame) error {
	if c.state != Idle {
		return fmt.Errorf("epd: display in state %s: %w", c.state, ErrNotReady)
	}
	r := f.Bounds()
	c.buf.Reset()
	for y := r.Min.Y; y < r.Max.Y; y += c.scale {
		_, _ = c.buf.WriteString("\033[0m")
		for x := r.Min.X; x < r.Max.X; x += c.scale {
			_, _ = io.WriteString(&c.buf, c.palette.Block(c.cell(f, x, y, r)))
		}
		_, _ = c.buf.WriteString("\033[0m\n")
	}
	_, err := c.buf.WriteTo(c.w)
	return err
}

// cell returns black if any pixel of the scale x scale cell at (x, y) is
// dark.
func (c *Console) cell(img image.Image, x, y int, r image.Rectangle) color.NRGBA {
	for dy := 0; dy < c.scale && y+dy < r.Max.Y; dy++ {
		for dx := 0; dx < c.scale && x+dx < r.Max.X; dx++ {
			if g := color.GrayModel.Convert(img.At(x+dx, y+dy)).(color.Gray); g.Y < 0x80 {
				return color.NRGBA{A: 255}
			}
		}
	}
	return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
}
