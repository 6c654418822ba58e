package entity

// OperatorState состояние оператора в диалоге с ботом
type OperatorState string

const (
	StateIdle          OperatorState = "idle"           // Ничего не ждём
	StateAwaitingPhoto OperatorState = "awaiting_photo" // Ожидание фото изделия
	StateProcessing    OperatorState = "processing"     // Идёт проверка
)

// Operator оператор линии контроля, работающий через бота
type Operator struct {
	ID         int64         // Telegram User ID
	ChatID     int64         // Telegram Chat ID
	State      OperatorState // Текущее состояние
	LastScanID string        // ID последней проверки
}

// NewOperator создаёт оператора в состоянии ожидания
func NewOperator(userID, chatID int64) *Operator {
	return &Operator{
		ID:     userID,
		ChatID: chatID,
		State:  StateIdle,
	}
}

// SetState обновляет состояние оператора
func (o *Operator) SetState(state OperatorState) {
	o.State = state
}
