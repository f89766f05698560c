package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var ErrDecodeFailed = errors.New("decode failed")

// Decoder turns raw thumbnail bytes into a texture.
type Decoder interface {
	Decode(data []byte) (Texture, error)
}

var _ Texture = (*Image)(nil)

// Image is a texture backed by an in-memory image.
type Image struct {
	image  image.Image
	format string
}

// Image returns the decoded image, or nil once released.
func (i *Image) Image() image.Image {
	return i.image
}

// Format returns the name of the encoding the image was decoded from, such
// as "jpeg" or "webp".
func (i *Image) Format() string {
	return i.format
}

func (i *Image) Release() {
	i.image = nil
}

var _ Decoder = (*ImageDecoder)(nil)

// ImageDecoder decodes JPEG, PNG and WebP thumbnails. Images wider than
// MaxWidth are scaled down, keeping their aspect ratio.
type ImageDecoder struct {
	MaxWidth int
}

func (d *ImageDecoder) Decode(data []byte) (Texture, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}

	bounds := img.Bounds()
	if d.MaxWidth > 0 && bounds.Dx() > d.MaxWidth {
		height := max(bounds.Dy()*d.MaxWidth/bounds.Dx(), 1)
		scaled := image.NewRGBA(image.Rect(0, 0, d.MaxWidth, height))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)
		img = scaled
	}

	return &Image{image: img, format: format}, nil
}
