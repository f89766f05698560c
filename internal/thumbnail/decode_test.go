package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestImage(t *testing.T, format string, width int, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		require.NoError(t, png.Encode(&buf, img))
	case "jpeg":
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	}
	return buf.Bytes()
}

func TestImageDecoder(t *testing.T) {
	testCases := []struct {
		Name           string
		Format         string
		Width          int
		Height         int
		MaxWidth       int
		ExpectedWidth  int
		ExpectedHeight int
	}{
		{Name: "png", Format: "png", Width: 32, Height: 18, ExpectedWidth: 32, ExpectedHeight: 18},
		{Name: "jpeg", Format: "jpeg", Width: 32, Height: 18, ExpectedWidth: 32, ExpectedHeight: 18},
		{Name: "scaled", Format: "jpeg", Width: 320, Height: 180, MaxWidth: 160, ExpectedWidth: 160, ExpectedHeight: 90},
		{Name: "narrower than max", Format: "png", Width: 100, Height: 100, MaxWidth: 160, ExpectedWidth: 100, ExpectedHeight: 100},
		{Name: "thin", Format: "png", Width: 200, Height: 1, MaxWidth: 20, ExpectedWidth: 20, ExpectedHeight: 1},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			decoder := &ImageDecoder{MaxWidth: testCase.MaxWidth}

			texture, err := decoder.Decode(encodeTestImage(t, testCase.Format, testCase.Width, testCase.Height))
			require.NoError(t, err)

			img := texture.(*Image)
			assert.Equal(t, testCase.Format, img.Format())
			assert.Equal(t, testCase.ExpectedWidth, img.Image().Bounds().Dx())
			assert.Equal(t, testCase.ExpectedHeight, img.Image().Bounds().Dy())

			img.Release()
			assert.Nil(t, img.Image())
		})
	}
}

func TestImageDecoderInvalid(t *testing.T) {
	decoder := &ImageDecoder{}

	_, err := decoder.Decode([]byte("<html>not an image</html>"))
	assert.ErrorIs(t, err, ErrDecodeFailed)

	_, err = decoder.Decode(nil)
	assert.ErrorIs(t, err, ErrDecodeFailed)

	_, err = decoder.Decode([]byte("RIFF\x10\x00\x00\x00WEBPVP8 "))
	assert.ErrorIs(t, err, ErrDecodeFailed)
}
