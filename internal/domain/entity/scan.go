package entity

import (
	"time"
)

// ScanStatus итоговый вердикт проверки
type ScanStatus string

const (
	StatusApproved ScanStatus = "approved"
	StatusRejected ScanStatus = "rejected"
)

// ScanRecord неизменяемый результат одной проверки изделия.
type ScanRecord struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Status        ScanStatus      `json:"status"`
	ProductModel  string          `json:"productModel"`
	TargetPresent bool            `json:"targetPresent"`
	Defects       []DefectFinding `json:"defects"`
	Confidence    float64         `json:"confidence"`
	SourceImage   string          `json:"sourceImage"` // исходный payload, хранится для аудита
}

// NewScanRecord собирает запись; статус выводится только из списка дефектов.
// Без целевого объекта уверенность и дефекты обнуляются.
func NewScanRecord(id string, ts time.Time, productModel string, target *Detection, defects []DefectFinding, sourceImage string) *ScanRecord {
	rec := &ScanRecord{
		ID:           id,
		Timestamp:    ts,
		Status:       StatusApproved,
		ProductModel: productModel,
		Defects:      []DefectFinding{},
		SourceImage:  sourceImage,
	}
	if target != nil {
		rec.TargetPresent = true
		rec.Confidence = target.Confidence
		rec.Defects = append(rec.Defects, defects...)
	}
	if len(rec.Defects) > 0 {
		rec.Status = StatusRejected
	}
	return rec
}

// Clone возвращает глубокую копию записи
func (r *ScanRecord) Clone() *ScanRecord {
	c := *r
	c.Defects = append([]DefectFinding{}, r.Defects...)
	return &c
}

// ScanStatistics агрегаты по всем сохранённым проверкам
type ScanStatistics struct {
	Total         int     `json:"total"`
	Approved      int     `json:"approved"`
	Rejected      int     `json:"rejected"`
	AvgConfidence float64 `json:"avg_confidence"`
}
