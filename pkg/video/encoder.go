// Package video turns camera frames into JPEG stills at a bounded rate.
//
// Frames flow camera → Worker (keep-only-latest) → Throttler (JPEG encode and
// 500 ms gate) → consumer. A slow consumer never builds a backlog: frames
// that arrive while one is in flight replace the pending frame, and frames
// that arrive too soon after the last accepted one are dropped.
package video

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"
)

// DefaultQuality is the JPEG quality used for outbound frames.
const DefaultQuality = 80

// ErrInvalidFrame is returned for raw frames that cannot be decoded.
var ErrInvalidFrame = errors.New("video: invalid frame")

// RawFrame is one uncompressed camera frame.
type RawFrame struct {
	Image     image.Image
	Timestamp time.Time
}

// Frame is one encoded frame ready to send.
type Frame struct {
	JPEG      []byte
	Timestamp time.Time
}

// NV21 wraps a YUV 4:2:0 semi-planar buffer (Y plane followed by
// interleaved V/U samples) as an image. Width and height must be even.
func NV21(data []byte, width, height int) (*image.YCbCr, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("%w: nv21 size %dx%d", ErrInvalidFrame, width, height)
	}
	ySize := width * height
	if len(data) < ySize+ySize/2 {
		return nil, fmt.Errorf("%w: nv21 buffer %d bytes, want %d", ErrInvalidFrame, len(data), ySize+ySize/2)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio420)
	copy(img.Y, data[:ySize])
	vu := data[ySize : ySize+ySize/2]
	for i := 0; i < len(img.Cb); i++ {
		img.Cr[i] = vu[2*i]
		img.Cb[i] = vu[2*i+1]
	}
	return img, nil
}

// Encoder compresses frames to JPEG.
type Encoder struct {
	// Quality is the JPEG quality, 1 to 100. Zero means DefaultQuality.
	Quality int

	// MaxWidth downscales wider frames, keeping the aspect ratio. Zero
	// keeps the original size.
	MaxWidth int
}

// Encode compresses img into a single JPEG.
func (e Encoder) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidFrame)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidFrame)
	}
	if e.MaxWidth > 0 && b.Dx() > e.MaxWidth {
		h := b.Dy() * e.MaxWidth / b.Dx()
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, e.MaxWidth, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst
	}

	q := e.Quality
	if q == 0 {
		q = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("video: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
