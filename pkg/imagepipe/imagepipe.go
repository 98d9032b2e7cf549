// Package imagepipe normalises product images before they are sent to the CDN.
package imagepipe

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxDimension bounds the longest side of a compressed image.
	DefaultMaxDimension = 1920
	// DefaultQuality is the JPEG quality used for re-encoding.
	DefaultQuality = 85
	// DefaultMaxPixels bounds the decoded size of an input image.
	DefaultMaxPixels = 40_000_000
)

var (
	// ErrInvalidPayload indicates the base64 payload could not be decoded.
	ErrInvalidPayload = errors.New("invalid base64 image payload")
	// ErrTooManyPixels indicates the image header declares more pixels than allowed.
	ErrTooManyPixels = errors.New("image dimensions too large")
)

// Options tunes Compress. Zero values fall back to the defaults.
type Options struct {
	MaxDimension int
	Quality      int
	MaxPixels    int64
}

// Result is a re-encoded image.
type Result struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Compress decodes a JPEG, PNG or WebP image, fits it inside MaxDimension and
// re-encodes it as JPEG. Images whose header declares more than MaxPixels are
// rejected before any pixel data is decoded.
func Compress(data []byte, opts Options) (Result, error) {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}

	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode image header: %w", err)
	}
	if config.Width <= 0 || config.Height <= 0 {
		return Result{}, fmt.Errorf("decode image header: empty %dx%d image", config.Width, config.Height)
	}
	if int64(config.Width)*int64(config.Height) > opts.MaxPixels {
		return Result{}, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, config.Width, config.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > opts.MaxDimension || bounds.Dy() > opts.MaxDimension {
		img = imaging.Fit(img, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
	}
	flattened := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), image.White)
	flattened = imaging.Overlay(flattened, img, image.Point{}, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flattened, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
		return Result{}, fmt.Errorf("encode image: %w", err)
	}

	return Result{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  flattened.Bounds().Dx(),
		Height: flattened.Bounds().Dy(),
	}, nil
}

// DataURI renders data as a base64 data URI.
func DataURI(data []byte, mime string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 accepts either a data URI or a bare base64 string.
func DecodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.Contains(payload[:comma], ";base64") {
			return nil, ErrInvalidPayload
		}
		payload = payload[comma+1:]
	}
	if payload == "" {
		return nil, ErrInvalidPayload
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, ErrInvalidPayload
		}
	}
	return data, nil
}
