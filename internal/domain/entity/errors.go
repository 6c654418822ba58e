package entity

import "fmt"

// DecodeError payload не удалось разобрать как изображение
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return "decode image: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EmptyRegionError после обрезки по кадру у прямоугольника не осталось площади
type EmptyRegionError struct {
	Box Box
}

func (e *EmptyRegionError) Error() string {
	return fmt.Sprintf("empty region (%d,%d)-(%d,%d)", e.Box.X1, e.Box.Y1, e.Box.X2, e.Box.Y2)
}

// LocalizerFailure ошибка внешнего локализатора
type LocalizerFailure struct {
	Err error
}

func (e *LocalizerFailure) Error() string { return "localizer failed: " + e.Err.Error() }

func (e *LocalizerFailure) Unwrap() error { return e.Err }

// SinkFailure не удалось сохранить готовый вердикт
type SinkFailure struct {
	ScanID string
	Err    error
}

func (e *SinkFailure) Error() string {
	return fmt.Sprintf("store scan %s: %v", e.ScanID, e.Err)
}

func (e *SinkFailure) Unwrap() error { return e.Err }
