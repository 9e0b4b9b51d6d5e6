package pdfengine

import (
	"image"

	qrcode "github.com/skip2/go-qrcode"
)

const qrPixels = 256

// QRImage renders content as a QR code.
func QRImage(content string) (image.Image, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return q.Image(qrPixels), nil
}
