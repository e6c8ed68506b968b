// Package imaging validates uploaded images and produces the small signature
// thumbnails embedded in spreadsheets.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"strings"

	xdraw "golang.org/x/image/draw"
)

var (
	ErrUnsupportedImage = errors.New("image must be jpg, png or gif")
	ErrInvalidDataURL   = errors.New("invalid image data url")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Detect sniffs raw and returns its content type and file extension.
func Detect(raw []byte) (string, string, error) {
	if len(raw) == 0 {
		return "", "", ErrUnsupportedImage
	}
	mime := http.DetectContentType(raw)
	ext, ok := extensions[mime]
	if !ok {
		return "", "", ErrUnsupportedImage
	}
	return mime, ext, nil
}

// DecodeDataURL reads a "data:image/png;base64,..." value as drawn by the
// signature pad.
func DecodeDataURL(value string) ([]byte, string, error) {
	value = strings.TrimSpace(value)
	header, payload, ok := strings.Cut(value, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, "", ErrInvalidDataURL
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", ErrInvalidDataURL
	}
	mime, _, err := Detect(raw)
	if err != nil {
		return nil, "", err
	}
	return raw, mime, nil
}

// Thumbnail scales raw to fit inside width x height, centred on a transparent
// canvas, and encodes the result as PNG.
func Thumbnail(raw []byte, width, height int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, errors.New("invalid image dimensions")
	}

	scaleW := float64(width) / float64(bounds.Dx())
	scaleH := float64(height) / float64(bounds.Dy())
	scale := min(scaleW, scaleH)
	fitW := max(1, int(float64(bounds.Dx())*scale))
	fitH := max(1, int(float64(bounds.Dy())*scale))
	offX := (width - fitW) / 2
	offY := (height - fitH) / 2

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, image.Rect(offX, offY, offX+fitW, offY+fitH), src, bounds, xdraw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
