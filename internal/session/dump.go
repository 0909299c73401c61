package session

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"epdnews/internal/framebuf"
)

// dumpPage writes page-NN.png and page-NN.bin (the plane in controller RAM
// order) into dir.
func dumpPage(dir string, i int, fb *framebuf.Framebuffer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := filepath.Join(dir, fmt.Sprintf("page-%02d", i))

	if err := os.WriteFile(base+".bin", fb.Transfer(), 0o644); err != nil {
		return err
	}

	f, err := os.Create(base + ".png")
	if err != nil {
		return err
	}
	if err := png.Encode(f, fb); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
