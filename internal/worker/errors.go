package worker

import "errors"

// Ошибки воркера.
var (
	// ErrStepGone — шаг (или его дело) удалён до выполнения.
	ErrStepGone = errors.New("step no longer exists")

	// ErrUnexpectedMessage — сообщение не является корректным step.due.
	ErrUnexpectedMessage = errors.New("unexpected message")
)
