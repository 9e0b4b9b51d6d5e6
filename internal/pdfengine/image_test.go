package pdfengine

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.NRGBA{0, 0, 128, 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeImageAcceptsDataURLAndBareBase64(t *testing.T) {
	url := pngDataURL(t, 40, 20)
	img, err := DecodeImage(url)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())

	bare := url[len("data:image/png;base64,"):]
	img, err = DecodeImage(bare)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dy())

	_, err = DecodeImage("data:image/png;base64,!!!")
	require.Error(t, err)
	_, err = DecodeImage(base64.StdEncoding.EncodeToString([]byte("not an image")))
	require.Error(t, err)
}

func TestToJPEGFlattensAndDownscales(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2400, 600))
	out, err := ToJPEG(img)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, maxImageSide, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
	assert.Equal(t, color.YCbCrModel, cfg.ColorModel)
}

func TestQRImage(t *testing.T) {
	img, err := QRImage("https://sign.example.com/verify/abc")
	require.NoError(t, err)
	assert.Equal(t, qrPixels, img.Bounds().Dx())
}

func TestGeneratePIN(t *testing.T) {
	re := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 50; i++ {
		pin, err := GeneratePIN()
		require.NoError(t, err)
		assert.Regexp(t, re, pin)
	}
}
