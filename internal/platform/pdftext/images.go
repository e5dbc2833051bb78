package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/ledongthuc/pdf"
)

// maxImagePixels bounds a single decoded image so a hostile header cannot
// force a huge allocation.
const maxImagePixels = 40_000_000

var errUnsupportedImage = errors.New("unsupported image encoding")

// figure is one image XObject decoded and re-encoded as PNG.
type figure struct {
	name string
	png  []byte
}

// extractFigures decodes the image XObjects in a page's resources. Only
// 8-bit DeviceGray and DeviceRGB samples stored raw or with FlateDecode can
// be decoded by the parser; other images are counted as skipped.
func extractFigures(page pdf.Page, pageNum int) (figures []figure, skipped int) {
	xobjects := page.Resources().Key("XObject")
	for _, key := range xobjects.Keys() {
		x := xobjects.Key(key)
		if x.Kind() != pdf.Stream || x.Key("Subtype").Name() != "Image" {
			continue
		}

		data, err := decodeFigure(x)
		if err != nil {
			skipped++
			continue
		}
		figures = append(figures, figure{
			name: fmt.Sprintf("page-%d-%s.png", pageNum, key),
			png:  data,
		})
	}
	return figures, skipped
}

// decodeFigure converts one image XObject to PNG.
func decodeFigure(x pdf.Value) (out []byte, err error) {
	// Value.Reader panics on filters it does not implement.
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %v", errUnsupportedImage, r)
		}
	}()

	if x.Key("ImageMask").Bool() || x.Key("BitsPerComponent").Int64() != 8 {
		return nil, errUnsupportedImage
	}
	switch filter := x.Key("Filter"); filter.Kind() {
	case pdf.Null:
	case pdf.Name:
		if filter.Name() != "FlateDecode" {
			return nil, errUnsupportedImage
		}
	default:
		return nil, errUnsupportedImage
	}

	var channels int
	switch x.Key("ColorSpace").Name() {
	case "DeviceGray":
		channels = 1
	case "DeviceRGB":
		channels = 3
	default:
		return nil, errUnsupportedImage
	}

	w, h := int(x.Key("Width").Int64()), int(x.Key("Height").Int64())
	if w <= 0 || h <= 0 || w > maxImagePixels/h {
		return nil, fmt.Errorf("%w: bad dimensions %dx%d", errUnsupportedImage, w, h)
	}

	want := w * h * channels
	rc := x.Reader()
	defer rc.Close()
	samples, err := io.ReadAll(io.LimitReader(rc, int64(want)))
	if err != nil {
		return nil, err
	}
	if len(samples) < want {
		return nil, fmt.Errorf("%w: truncated samples (%d of %d bytes)", errUnsupportedImage, len(samples), want)
	}

	var img image.Image
	rect := image.Rect(0, 0, w, h)
	if channels == 1 {
		img = &image.Gray{Pix: samples, Stride: w, Rect: rect}
	} else {
		rgba := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(samples); i, j = i+3, j+4 {
			rgba.Pix[j] = samples[i]
			rgba.Pix[j+1] = samples[i+1]
			rgba.Pix[j+2] = samples[i+2]
			rgba.Pix[j+3] = 0xff
		}
		img = rgba
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
