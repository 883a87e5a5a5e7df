// Package imaging turns arbitrary images into the fixed-size canonical
// buffers every similarity metric operates on.
package imaging

import (
	"bytes"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/tiff" // TIFF decoder
	_ "golang.org/x/image/webp" // WebP decoder

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
)

// Canonical is a row-major, non-premultiplied RGBA buffer. It is never
// mutated after construction.
type Canonical struct {
	Width  int
	Height int
	Pix    []byte
}

// New wraps pix as a Canonical, enforcing len(pix) == w*h*4.
func New(w, h int, pix []byte) (*Canonical, error) {
	if w < 0 || h < 0 || len(pix) != w*h*BytesPerPixel {
		return nil, apperrors.Newf(apperrors.InvalidImage, "buffer length %d does not match %dx%d", len(pix), w, h)
	}
	return &Canonical{Width: w, Height: h, Pix: pix}, nil
}

// SameSize reports whether both buffers have identical dimensions.
func (c *Canonical) SameSize(o *Canonical) bool {
	return c.Width == o.Width && c.Height == o.Height && len(c.Pix) == len(o.Pix)
}

// Image exposes the buffer as an image.Image without copying.
func (c *Canonical) Image() image.Image {
	return &image.NRGBA{Pix: c.Pix, Stride: c.Width * BytesPerPixel, Rect: image.Rect(0, 0, c.Width, c.Height)}
}

// Canonicalize scales img onto a Size×Size surface in a single bilinear pass.
// The surface is allocated per call and becomes the returned buffer.
func Canonicalize(img image.Image) (*Canonical, error) {
	if img == nil {
		return nil, apperrors.New(apperrors.InvalidImage, "nil image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperrors.Newf(apperrors.InvalidImage, "zero-area image %dx%d", b.Dx(), b.Dy())
	}

	dst := image.NewNRGBA(image.Rect(0, 0, Size, Size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	return &Canonical{Width: Size, Height: Size, Pix: dst.Pix}, nil
}

// Decode decodes any registered image format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.InvalidImage, "undecodable image")
	}
	return img, format, nil
}

// Load decodes r and canonicalizes the result.
func Load(r io.Reader) (*Canonical, error) {
	img, _, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return Canonicalize(img)
}

// LoadBytes is Load over an in-memory payload.
func LoadBytes(data []byte) (*Canonical, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.InvalidImage, "empty image payload")
	}
	return Load(bytes.NewReader(data))
}
