package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"qc-scanner/internal/domain/entity"
)

// Форматы превью с подсветкой.
const (
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

const highlightThickness = 2

// Highlight рисует зелёную рамку детекции поверх копии кадра и кодирует результат.
func Highlight(frame image.Image, box entity.Box, format string) ([]byte, error) {
	dst := imaging.Clone(frame)
	clamped := box.Clamp(dst.Bounds().Dx(), dst.Bounds().Dy())
	if !clamped.Empty() {
		drawFrame(dst, image.Rect(clamped.X1, clamped.Y1, clamped.X2, clamped.Y2), color.NRGBA{G: 255, A: 255})
	}

	var buf bytes.Buffer
	switch format {
	case FormatJPEG, "jpg", "":
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatWebP:
		if err := webp.Encode(&buf, dst, &webp.Options{Lossless: true}); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported preview format %q", format)
	}
	return buf.Bytes(), nil
}

// drawFrame рисует контур прямоугольника внутрь его границ.
func drawFrame(dst draw.Image, r image.Rectangle, c color.Color) {
	t := highlightThickness
	if r.Dx() < 2*t || r.Dy() < 2*t {
		draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
		return
	}
	src := image.NewUniform(c)
	for _, side := range []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	} {
		draw.Draw(dst, side, src, image.Point{}, draw.Src)
	}
}
