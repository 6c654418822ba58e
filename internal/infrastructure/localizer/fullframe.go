package localizer

import (
	"context"
	"image"

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
)

// FullFrame считает, что изделие занимает весь кадр. Подходит для стенда
// с фиксированной камерой, где детектор не нужен.
type FullFrame struct {
	targetClass int
}

// NewFullFrame создаёт локализатор, всегда возвращающий одну детекцию
func NewFullFrame(targetClass int) *FullFrame {
	return &FullFrame{targetClass: targetClass}
}

func (l *FullFrame) Localize(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := frame.Bounds()
	return []entity.Detection{{
		Class:      l.targetClass,
		Confidence: 1,
		Box:        entity.Box{X1: 0, Y1: 0, X2: b.Dx(), Y2: b.Dy()},
	}}, nil
}

var _ port.ObjectLocalizer = (*FullFrame)(nil)
