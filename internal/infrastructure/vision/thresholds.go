package vision

import (
	"qc-scanner/internal/domain/entity"
)

// Thresholds пороги эвристик анализатора дефектов.
type Thresholds struct {
	EdgeSum   float64 // сумма отклика Canny (края = 255)
	HueStdDev float64 // СКО канала H в шкале OpenCV 0..179
	CannyLow  float64 // нижний порог гистерезиса
	CannyHigh float64 // верхний порог гистерезиса
}

// DefaultThresholds возвращает откалиброванные значения для Gaming Mouse X1
func DefaultThresholds() Thresholds {
	return Thresholds{
		EdgeSum:   10000,
		HueStdDev: 30,
		CannyLow:  100,
		CannyHigh: 200,
	}
}

// evaluate сравнивает метрики с порогами. Порядок проверок фиксирован:
// сначала царапины, затем цвет.
func (t Thresholds) evaluate(edgeEnergy, hueStd float64) entity.AnalysisReport {
	defects := make([]entity.DefectFinding, 0, 2)
	if edgeEnergy > t.EdgeSum {
		defects = append(defects, entity.DefectScratchedSurface)
	}
	if hueStd > t.HueStdDev {
		defects = append(defects, entity.DefectColorInconsistency)
	}
	return entity.AnalysisReport{
		EdgeEnergy: edgeEnergy,
		HueStdDev:  hueStd,
		Defects:    defects,
	}
}
