package actions

import "errors"

// Ошибки исполнителей действий.
var (
	// ErrUnknownActionType — для типа действия нет исполнителя.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrIndeterminate — исход действия неизвестен (например, таймаут
	// после отправки). Действие остаётся невыполненным.
	ErrIndeterminate = errors.New("action outcome indeterminate")
)
