package qrimage

import (
	"encoding/base64"
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the rendered QR edge length in pixels.
const DefaultSize = 256

// PNG renders token text as a QR code image. High recovery level so a
// phone camera reads it off a projector.
func PNG(text string, size int) ([]byte, error) {
	if text == "" {
		return nil, errors.New("empty token text")
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(text, qrcode.High, size)
}

// DataURL renders token text as an inline image suitable for an <img> src.
func DataURL(text string, size int) (string, error) {
	png, err := PNG(text, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
