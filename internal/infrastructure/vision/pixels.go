package vision

import (
	"image"

	"qc-scanner/internal/domain/entity"
)

// analyzePixels считает обе метрики на чистом Go.
func analyzePixels(roi image.Image, th Thresholds) entity.AnalysisReport {
	gray, w, h := luminance(roi)
	energy := sumEdges(cannyEdges(gray, w, h, th.CannyLow, th.CannyHigh))
	return th.evaluate(energy, hueStdDev(roi))
}
