//go:build linux

package screen

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"time"
)

const grabTimeout = 5 * time.Second

// Default picks grim on Wayland and ImageMagick import on X11.
func Default() (Grabber, string) {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if bin, err := exec.LookPath("grim"); err == nil {
			return commandGrabber(bin, "grim", "-t", "png", "-"), "grim"
		}
	}
	if os.Getenv("DISPLAY") != "" {
		if bin, err := exec.LookPath("import"); err == nil {
			return commandGrabber(bin, "import", "-window", "root", "png:-"), "imagemagick"
		}
	}
	return GrabberFunc(func(context.Context) (Frame, error) { return Frame{}, ErrUnsupported }), "unavailable"
}

func commandGrabber(bin, backend string, args ...string) Grabber {
	return GrabberFunc(func(ctx context.Context) (Frame, error) {
		ctx, cancel := context.WithTimeout(ctx, grabTimeout)
		defer cancel()
		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, bin, args...)
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			return Frame{}, fmt.Errorf("%s: %w: %s", backend, err, bytes.TrimSpace(stderr.Bytes()))
		}
		img, err := png.Decode(bytes.NewReader(out))
		if err != nil {
			return Frame{}, fmt.Errorf("%s: decode png: %w", backend, err)
		}
		return Frame{Image: img, Backend: backend}, nil
	})
}
