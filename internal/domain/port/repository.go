package port

import (
	"context"

	"qc-scanner/internal/domain/entity"
)

// ScanRepository хранилище результатов проверок
type ScanRepository interface {
	// Add сохраняет запись, одна вставка на проверку
	Add(ctx context.Context, rec *entity.ScanRecord) error

	// History возвращает последние записи, новые первыми
	History(ctx context.Context, limit int) ([]*entity.ScanRecord, error)

	// Statistics считает агрегаты по всем записям
	Statistics(ctx context.Context) (*entity.ScanStatistics, error)
}

// OperatorRepository интерфейс хранилища операторов бота
type OperatorRepository interface {
	// Get возвращает оператора по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.Operator, error)

	// Save сохраняет состояние оператора
	Save(ctx context.Context, op *entity.Operator) error
}
