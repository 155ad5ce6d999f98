// Package qr renders content as QR code images for enrollment flows.
package qr

import (
	"encoding/base64"
	"errors"

	"github.com/skip2/go-qrcode"
)

// ErrEmptyContent is returned when there is nothing to encode.
var ErrEmptyContent = errors.New("qr content is empty")

// DefaultSize is the rendered image size in pixels, a good balance for
// smartphone camera scanning.
const DefaultSize = 256

// Encoder renders content as a QR image.
type Encoder interface {
	// PNG returns the content encoded as a PNG image of size pixels.
	PNG(content string, size int) ([]byte, error)
	// DataURI returns the content encoded as a base64 PNG data URI,
	// suitable for direct embedding in an <img> tag.
	DataURI(content string, size int) (string, error)
}

// Code implements Encoder with medium error correction.
type Code struct{}

// New returns a Code encoder.
func New() *Code {
	return &Code{}
}

// PNG returns the content encoded as a PNG image of size pixels.
func (c *Code) PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	if size <= 0 {
		size = DefaultSize
	}

	return qrcode.Encode(content, qrcode.Medium, size)
}

// DataURI returns the content encoded as a base64 PNG data URI.
func (c *Code) DataURI(content string, size int) (string, error) {
	png, err := c.PNG(content, size)
	if err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
