package button

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestNone(t *testing.T) {
	if pressed, err := None().Pressed(context.Background()); pressed || err != nil {
		t.Errorf("None().Pressed() = %t, %v; want false, nil", pressed, err)
	}
	if pressed, _ := DefaultReader("", true).Pressed(context.Background()); pressed {
		t.Error("DefaultReader(\"\") is pressed")
	}
}

func TestGPIOReader(t *testing.T) {
	for _, tc := range []struct {
		name      string
		activeLow bool
		level     gpio.Level
		want      bool
	}{
		{"active low released", true, gpio.High, false},
		{"active low pressed", true, gpio.Low, true},
		{"active high released", false, gpio.Low, false},
		{"active high pressed", false, gpio.High, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := &gpiotest.Pin{N: "GPIO21", L: tc.level}
			r := &gpioReader{pin: p, activeLow: tc.activeLow}
			got, err := r.Pressed(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("Pressed() = %t, want %t", got, tc.want)
			}
		})
	}
}

func TestLineReader(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewLineReader(pr)

	if pressed, _ := r.Pressed(context.Background()); pressed {
		t.Fatal("pressed before any input")
	}

	go func() {
		_, _ = io.Copy(pw, strings.NewReader("\n"))
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pressed, _ := r.Pressed(context.Background()); pressed {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Error("not pressed after a line was written")
}

func TestFunc(t *testing.T) {
	calls := 0
	r := Func(func(context.Context) (bool, error) {
		calls++
		return calls == 2, nil
	})
	first, _ := r.Pressed(context.Background())
	second, _ := r.Pressed(context.Background())
	if first || !second {
		t.Errorf("Pressed() = %t, %t; want false, true", first, second)
	}
}
