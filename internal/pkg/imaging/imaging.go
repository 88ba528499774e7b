// Package imaging downsizes staged images before they are attached to a draft:
// anything wider than the configured width is scaled down with its aspect ratio
// kept, and every image is re-encoded as JPEG at a fixed quality. The original
// bytes are never kept.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"store_admin/internal/pkg/apierr"
)

// UI-facing messages for rejected files.
const (
	MsgUnsupportedType = "Unsupported image type. Use JPEG, PNG, GIF or WebP."
	MsgTooLarge        = "Image file is too large."
	MsgEncodeFailed    = "The image could not be processed."
)

const contentType = "image/jpeg"

var supportedFormats = map[string]bool{"jpeg": true, "png": true, "gif": true, "webp": true}

// Options bound the output.
type Options struct {
	MaxWidth int   // output width never exceeds this
	Quality  int   // JPEG quality, 1-100
	MaxBytes int64 // input files larger than this are rejected before decoding
	// MaxPixels caps width*height as declared by the file header, so a small
	// file cannot expand into a huge bitmap.
	MaxPixels int64
}

// DefaultOptions match the dashboard's upload settings.
var DefaultOptions = Options{MaxWidth: 800, Quality: 70, MaxBytes: 5 << 20, MaxPixels: 40_000_000}

// Image is a compressed, ready-to-upload image.
type Image struct {
	FileName    string
	ContentType string
	Width       int
	Height      int
	Data        []byte
}

// DataURL renders the image as a data: URL for previews.
func (img *Image) DataURL() string {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Compress decodes r, scales it to at most opts.MaxWidth wide and re-encodes it
// as JPEG. Every failure is an apierr.ClientInput error.
func Compress(r io.Reader, fileName string, opts Options) (*Image, error) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultOptions.MaxWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultOptions.Quality
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultOptions.MaxBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultOptions.MaxPixels
	}

	raw, err := io.ReadAll(io.LimitReader(r, opts.MaxBytes+1))
	if err != nil {
		return nil, clientErr(MsgEncodeFailed, err)
	}
	if int64(len(raw)) > opts.MaxBytes {
		return nil, clientErr(MsgTooLarge, nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || !supportedFormats[format] {
		return nil, clientErr(MsgUnsupportedType, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, clientErr(MsgUnsupportedType, errors.New("empty image"))
	}
	if int64(cfg.Width)*int64(cfg.Height) > opts.MaxPixels {
		return nil, clientErr(MsgTooLarge, fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, opts.MaxPixels))
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, clientErr(MsgUnsupportedType, err)
	}

	width, height := FitWidth(src.Bounds().Dx(), src.Bounds().Dy(), opts.MaxWidth)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// JPEG has no alpha: flatten transparent pixels onto white.
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if width == src.Bounds().Dx() && height == src.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, clientErr(MsgEncodeFailed, err)
	}

	return &Image{
		FileName:    jpegName(fileName),
		ContentType: contentType,
		Width:       width,
		Height:      height,
		Data:        out.Bytes(),
	}, nil
}

// FitWidth returns the dimensions of a w×h image scaled down to at most maxWidth
// wide with its aspect ratio kept. Images already narrow enough are unchanged.
func FitWidth(w, h, maxWidth int) (int, int) {
	if w <= maxWidth {
		return w, h
	}
	scaled := int(math.Round(float64(h) * float64(maxWidth) / float64(w)))
	if scaled < 1 {
		scaled = 1
	}
	return maxWidth, scaled
}

func jpegName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
}

func clientErr(msg string, cause error) error {
	e := apierr.ClientInputErr(msg, nil)
	if cause != nil {
		e.Err = fmt.Errorf("imaging: %w", cause)
	}
	return e
}
