package integrations

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/chai2010/webp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage reports page bytes that do not decode as an image.
var ErrInvalidImage = errors.New("invalid image data")

const (
	FormatJPEG = "jpeg"
	FormatWEBP = "webp"
)

type ImageSettings struct {
	Format   string // FormatJPEG or FormatWEBP
	Quality  int    // 1-100
	DPI      int    // 0 keeps the encoder default
	MaxWidth int    // pages wider than this are downscaled, 0 disables
}

// ImageProcessor normalizes decoded pages to opaque RGB and re-encodes them.
type ImageProcessor struct {
	settings ImageSettings
}

func NewImageProcessor(settings ImageSettings) *ImageProcessor {
	return &ImageProcessor{settings: settings}
}

// Ext is the file extension written for processed pages.
func (p *ImageProcessor) Ext() string {
	return p.settings.Format
}

// ProcessImage decodes, flattens and re-encodes one page.
func (p *ImageProcessor) ProcessImage(input io.Reader) ([]byte, error) {
	img, _, err := image.Decode(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return p.encode(fitWidth(toRGB(img), p.settings.MaxWidth))
}

func (p *ImageProcessor) ProcessImageData(data []byte) ([]byte, error) {
	return p.ProcessImage(bytes.NewReader(data))
}

// toRGB flattens any alpha onto a white background.
func toRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}

func fitWidth(img *image.RGBA, maxWidth int) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if maxWidth <= 0 || w <= maxWidth {
		return img
	}
	nh := h * maxWidth / w
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func (p *ImageProcessor) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer

	switch p.settings.Format {
	case FormatJPEG, "jpg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.settings.Quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
		if p.settings.DPI > 0 {
			return withJFIFDensity(buf.Bytes(), p.settings.DPI), nil
		}
	case FormatWEBP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(p.settings.Quality)}); err != nil {
			return nil, fmt.Errorf("failed to encode WEBP: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", p.settings.Format)
	}

	return buf.Bytes(), nil
}

// withJFIFDensity inserts a JFIF APP0 segment carrying the DPI right after
// SOI. image/jpeg writes no APP0 of its own.
func withJFIFDensity(data []byte, dpi int) []byte {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return data
	}
	if data[2] == 0xFF && data[3] == 0xE0 {
		return data
	}
	if dpi > 0xFFFF {
		dpi = 0xFFFF
	}
	d1, d2 := byte(dpi>>8), byte(dpi)
	app0 := []byte{
		0xFF, 0xE0, 0x00, 0x10,
		'J', 'F', 'I', 'F', 0x00,
		0x01, 0x01, // version 1.01
		0x01,   // units: dots per inch
		d1, d2, // x density
		d1, d2, // y density
		0x00, 0x00, // no thumbnail
	}
	out := make([]byte, 0, len(data)+len(app0))
	out = append(out, data[:2]...)
	out = append(out, app0...)
	return append(out, data[2:]...)
}
