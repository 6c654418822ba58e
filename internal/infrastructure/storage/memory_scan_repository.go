package storage

import (
	"context"
	"fmt"
	"sync"

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
)

// MemoryScanRepository in-memory хранилище проверок; записи сериализуются мьютексом
type MemoryScanRepository struct {
	mu      sync.RWMutex
	records []*entity.ScanRecord
	ids     map[string]struct{}
}

// NewMemoryScanRepository создаёт пустое хранилище
func NewMemoryScanRepository() *MemoryScanRepository {
	return &MemoryScanRepository{
		ids: make(map[string]struct{}),
	}
}

// Add сохраняет копию записи. Повторный ID считается ошибкой, как у первичного ключа.
func (r *MemoryScanRepository) Add(ctx context.Context, rec *entity.ScanRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.ids[rec.ID]; dup {
		return fmt.Errorf("scan %s already stored", rec.ID)
	}
	r.ids[rec.ID] = struct{}{}
	r.records = append(r.records, rec.Clone())
	return nil
}

// History возвращает до limit последних записей, новые первыми
func (r *MemoryScanRepository) History(ctx context.Context, limit int) ([]*entity.ScanRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*entity.ScanRecord, 0, n)
	for i := len(r.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.records[i].Clone())
	}
	return out, nil
}

// Statistics считает агрегаты по всем записям
func (r *MemoryScanRepository) Statistics(ctx context.Context) (*entity.ScanStatistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &entity.ScanStatistics{Total: len(r.records)}
	var sum float64
	for _, rec := range r.records {
		switch rec.Status {
		case entity.StatusApproved:
			stats.Approved++
		case entity.StatusRejected:
			stats.Rejected++
		}
		sum += rec.Confidence
	}
	if stats.Total > 0 {
		stats.AvgConfidence = sum / float64(stats.Total)
	}
	return stats, nil
}

// Проверка реализации интерфейса
var _ port.ScanRepository = (*MemoryScanRepository)(nil)
