//go:build gocv
// +build gocv

package vision

import (
	"image"

	"gocv.io/x/gocv"

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
	"qc-scanner/internal/logger"
)

// DefectAnalyzer ищет царапины и неоднородность цвета средствами OpenCV.
type DefectAnalyzer struct {
	Thresholds Thresholds
}

// NewDefectAnalyzer создаёт анализатор на gocv
func NewDefectAnalyzer(th Thresholds) *DefectAnalyzer {
	return &DefectAnalyzer{Thresholds: th}
}

// Analyze прогоняет обе эвристики; они независимы и всегда выполняются обе.
func (a *DefectAnalyzer) Analyze(roi image.Image) entity.AnalysisReport {
	mat, err := gocv.ImageToMatRGB(roi)
	if err != nil || mat.Empty() {
		// Если кадр не лёг в Mat, считаем тем же алгоритмом на Go.
		logger.WithError(err).Warn("gocv: image to mat conversion failed, using pure Go analyzer")
		if err == nil {
			mat.Close()
		}
		return analyzePixels(roi, a.Thresholds)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, float32(a.Thresholds.CannyLow), float32(a.Thresholds.CannyHigh))
	energy := edges.Sum().Val1

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(mat, &hsv, gocv.ColorBGRToHSV)
	channels := gocv.Split(hsv)
	for i := range channels {
		defer channels[i].Close()
	}

	mean := gocv.NewMat()
	defer mean.Close()
	stdDev := gocv.NewMat()
	defer stdDev.Close()
	gocv.MeanStdDev(channels[0], &mean, &stdDev)

	return a.Thresholds.evaluate(energy, stdDev.GetDoubleAt(0, 0))
}

var _ port.DefectAnalyzer = (*DefectAnalyzer)(nil)
