package entity

// DefectFinding метка дефекта, найденного эвристикой
type DefectFinding string

const (
	DefectScratchedSurface   DefectFinding = "Scratched surface"   // Царапины на поверхности
	DefectColorInconsistency DefectFinding = "Color inconsistency" // Неоднородный цвет корпуса
)

// AnalysisReport итог прогона эвристик по ROI.
type AnalysisReport struct {
	EdgeEnergy float64         // сумма отклика детектора границ
	HueStdDev  float64         // стандартное отклонение канала H
	Defects    []DefectFinding // сработавшие эвристики в порядке проверки
}

// HasDefects сообщает, сработала ли хотя бы одна эвристика
func (r AnalysisReport) HasDefects() bool {
	return len(r.Defects) > 0
}
