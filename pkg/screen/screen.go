// Package screen grabs the primary display and prepares frames for storage.
package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"math"
	"strings"

	"github.com/golang/snappy"

	"github.com/offlinefirst/activity-recorder/pkg/throttle"
)

// ErrPermissionRequired indicates the host must grant screen recording.
var ErrPermissionRequired = errors.New("screen recording permission required for capture")

// ErrUnsupported is returned when no grab backend exists on this host.
var ErrUnsupported = errors.New("screen capture unsupported on this platform")

type permissionError struct {
	message string
}

func (e *permissionError) Error() string { return e.message }

func (e *permissionError) Is(target error) bool { return target == ErrPermissionRequired }

func newPermissionError(message string) error {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		trimmed = ErrPermissionRequired.Error()
	}
	return &permissionError{message: trimmed}
}

// Frame is one decoded capture of the primary display.
type Frame struct {
	Image   image.Image
	Backend string
}

// Grabber captures the primary display.
type Grabber interface {
	Grab(ctx context.Context) (Frame, error)
}

// GrabberFunc adapts a function to Grabber.
type GrabberFunc func(ctx context.Context) (Frame, error)

// Grab calls f.
func (f GrabberFunc) Grab(ctx context.Context) (Frame, error) { return f(ctx) }

// Encode compresses img as JPEG. Quality is clamped to [0.1, 1.0].
func Encode(img image.Image, quality float64) ([]byte, error) {
	q := int(math.Round(throttle.ClampQuality(quality) * 100))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Crop returns the square of the given size centred on (x, y), clipped to
// the image bounds.
func Crop(img image.Image, x, y, size int) image.Image {
	if size < 1 {
		size = 1
	}
	half := size / 2
	r := image.Rect(x-half, y-half, x-half+size, y-half+size).Intersect(img.Bounds())
	if r.Empty() {
		return image.NewRGBA(image.Rectangle{})
	}
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// PackRaw returns the snappy-compressed RGBA pixels of img.
func PackRaw(img image.Image) []byte {
	return snappy.Encode(nil, toRGBA(img).Pix)
}

// UnpackRaw restores the pixel buffer written by PackRaw.
func UnpackRaw(packed []byte, width, height int) (*image.RGBA, error) {
	pix, err := snappy.Decode(nil, packed)
	if err != nil {
		return nil, fmt.Errorf("decode raw frame: %w", err)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("raw frame is %d bytes, want %d", len(pix), width*height*4)
	}
	return &image.RGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == rgba.Rect.Dx()*4 {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
