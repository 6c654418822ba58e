package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
)

// DefaultMaxPixels предел размера кадра по умолчанию (около 40 Мп)
const DefaultMaxPixels = 40_000_000

// Decoder разбирает payload вида "data:image/jpeg;base64,<данные>".
type Decoder struct {
	MaxPixels int // предел width*height по заголовку изображения
}

// NewDecoder создаёт декодер кадров; maxPixels <= 0 означает DefaultMaxPixels
func NewDecoder(maxPixels int) *Decoder {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Decoder{MaxPixels: maxPixels}
}

// Decode снимает префикс конверта, декодирует base64 и само изображение.
// Результат всегда *image.NRGBA с началом в (0,0) и непрозрачной альфой.
func (d *Decoder) Decode(payload string) (image.Image, error) {
	s := strings.TrimSpace(payload)
	i := strings.Index(s, ",")
	if i < 0 {
		return nil, &entity.DecodeError{Reason: "missing envelope prefix"}
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s[i+1:]))
	if err != nil {
		return nil, &entity.DecodeError{Reason: "bad base64", Err: err}
	}
	if len(raw) == 0 {
		return nil, &entity.DecodeError{Reason: "empty image data"}
	}

	// Размер проверяем по заголовку до выделения буфера пикселей.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, &entity.DecodeError{Reason: "unsupported or corrupt image", Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &entity.DecodeError{Reason: "image has no pixels"}
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(d.MaxPixels) {
		return nil, &entity.DecodeError{Reason: fmt.Sprintf("image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, d.MaxPixels)}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &entity.DecodeError{Reason: "unsupported or corrupt image", Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &entity.DecodeError{Reason: "image has no pixels"}
	}

	// Альфу отбрасываем, как при IMREAD_COLOR.
	grid := imaging.Clone(img)
	for p := 3; p < len(grid.Pix); p += 4 {
		grid.Pix[p] = 0xff
	}
	return grid, nil
}

// EncodeDataURI заворачивает байты изображения в конверт data-URI
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

var _ port.FrameDecoder = (*Decoder)(nil)
