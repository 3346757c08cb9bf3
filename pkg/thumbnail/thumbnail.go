// Package thumbnail renders size-bounded, orientation-corrected JPEG previews
// of input assets for transmission to the analysis service.
package thumbnail

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 85
)

// Renderer renders thumbnails with nfnt/resize
type Renderer struct {
	maxDimension uint
	quality      int
}

type Option func(*Renderer)

// WithMaxDimension bounds the longest side of the rendered preview
func WithMaxDimension(px uint) Option {
	return func(r *Renderer) {
		if px > 0 {
			r.maxDimension = px
		}
	}
}

// WithQuality sets the JPEG quality (1-100)
func WithQuality(q int) Option {
	return func(r *Renderer) {
		if q >= 1 && q <= 100 {
			r.quality = q
		}
	}
}

func New(opts ...Option) *Renderer {
	r := &Renderer{
		maxDimension: DefaultMaxDimension,
		quality:      DefaultQuality,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MIMEType of the bytes returned by Render
func (r *Renderer) MIMEType() string {
	return "image/jpeg"
}

// Render decodes the asset at path, shrinks it to fit the maximum dimension,
// applies its EXIF orientation and encodes it as JPEG.
func (r *Renderer) Render(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open asset", goerr.V("path", path))
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode asset", goerr.V("path", path))
	}

	bounds := img.Bounds()
	if uint(bounds.Dx()) > r.maxDimension || uint(bounds.Dy()) > r.maxDimension {
		img = resize.Thumbnail(r.maxDimension, r.maxDimension, img, resize.Lanczos3)
	}

	if format == "jpeg" || format == "tiff" {
		img = Orient(img, readOrientation(path))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, goerr.Wrap(err, "failed to encode thumbnail", goerr.V("path", path))
	}
	return buf.Bytes(), nil
}

func readOrientation(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return o
}
