package vision

import (
	"image"

	"github.com/disintegration/imaging"

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
)

// Cropper вырезает ROI по прямоугольнику детекции.
type Cropper struct{}

// NewCropper создаёт экстрактор областей
func NewCropper() *Cropper {
	return &Cropper{}
}

// Extract обрезает прямоугольник по границам кадра и возвращает копию области.
// Кривой прямоугольник от локализатора не должен ронять конвейер.
func (c *Cropper) Extract(frame image.Image, box entity.Box) (image.Image, error) {
	bounds := frame.Bounds()
	clamped := box.Clamp(bounds.Dx(), bounds.Dy())
	if clamped.Empty() {
		return nil, &entity.EmptyRegionError{Box: box}
	}

	rect := image.Rect(clamped.X1, clamped.Y1, clamped.X2, clamped.Y2).Add(bounds.Min)
	return imaging.Crop(frame, rect), nil
}

var _ port.RegionExtractor = (*Cropper)(nil)
