package port

import (
	"context"
	"image"

	"qc-scanner/internal/domain/entity"
)

// ObjectLocalizer интерфейс внешнего детектора объектов
type ObjectLocalizer interface {
	// Localize возвращает найденные на кадре объекты, возможно пустой список
	Localize(ctx context.Context, frame image.Image) ([]entity.Detection, error)
}

// DefectAnalyzer интерфейс анализатора дефектов
type DefectAnalyzer interface {
	// Analyze прогоняет эвристики по вырезанной области; чистая функция от ROI
	Analyze(roi image.Image) entity.AnalysisReport
}
