package port

import (
	"image"

	"qc-scanner/internal/domain/entity"
)

// FrameDecoder превращает payload из конверта data-URI в кадр
type FrameDecoder interface {
	// Decode возвращает *entity.DecodeError для битых или неподдерживаемых данных
	Decode(payload string) (image.Image, error)
}

// RegionExtractor вырезает область детекции из кадра
type RegionExtractor interface {
	// Extract возвращает *entity.EmptyRegionError, если после обрезки площадь нулевая
	Extract(frame image.Image, box entity.Box) (image.Image, error)
}
