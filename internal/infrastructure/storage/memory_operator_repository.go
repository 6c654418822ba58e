package storage

import (
	"context"
	"sync"

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
)

// MemoryOperatorRepository in-memory хранилище операторов бота
type MemoryOperatorRepository struct {
	mu        sync.RWMutex
	operators map[int64]*entity.Operator
}

// NewMemoryOperatorRepository создаёт новое in-memory хранилище
func NewMemoryOperatorRepository() *MemoryOperatorRepository {
	return &MemoryOperatorRepository{
		operators: make(map[int64]*entity.Operator),
	}
}

// Get возвращает копию оператора по ID, создаёт нового если не найден
func (r *MemoryOperatorRepository) Get(ctx context.Context, userID, chatID int64) (*entity.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, exists := r.operators[userID]
	if !exists {
		op = entity.NewOperator(userID, chatID)
		r.operators[userID] = op
	}

	c := *op
	return &c, nil
}

// Save сохраняет состояние оператора
func (r *MemoryOperatorRepository) Save(ctx context.Context, op *entity.Operator) error {
	c := *op

	r.mu.Lock()
	r.operators[op.ID] = &c
	r.mu.Unlock()

	return nil
}

// Проверка реализации интерфейса
var _ port.OperatorRepository = (*MemoryOperatorRepository)(nil)
