//go:build !gocv
// +build !gocv

package vision

import (
	"image"

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
)

// DefectAnalyzer ищет царапины и неоднородность цвета без OpenCV.
type DefectAnalyzer struct {
	Thresholds Thresholds
}

// NewDefectAnalyzer создаёт анализатор на чистом Go
func NewDefectAnalyzer(th Thresholds) *DefectAnalyzer {
	return &DefectAnalyzer{Thresholds: th}
}

// Analyze прогоняет обе эвристики; они независимы и всегда выполняются обе.
func (a *DefectAnalyzer) Analyze(roi image.Image) entity.AnalysisReport {
	return analyzePixels(roi, a.Thresholds)
}

var _ port.DefectAnalyzer = (*DefectAnalyzer)(nil)
