package software

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/castle/engine/core"
)

// Screenshot encodes the last presented frame as BMP.
func (d *Device) Screenshot(w io.Writer) error {
	d.presentMu.Lock()
	defer d.presentMu.Unlock()
	if d.presented == nil {
		return fmt.Errorf("nothing presented yet")
	}
	return bmp.Encode(w, d.presented)
}

func (d *Device) SaveScreenshot(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create screenshot file: %w", err)
	}
	defer f.Close()

	if err := d.Screenshot(f); err != nil {
		return err
	}
	core.LogInfo("screenshot written to %s", path)
	return nil
}
