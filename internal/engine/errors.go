package engine

import "errors"

// Ошибки движка.
var (
	// ErrNoNotifier — финальный этап требует уведомления, но Notifier не настроен.
	ErrNoNotifier = errors.New("case finished notifier is not configured")

	// ErrStepPerformed — шаг уже выполнен, изменять его действия нельзя.
	ErrStepPerformed = errors.New("step is already performed")

	// ErrActionNotFound — действия нет в наборе шага.
	ErrActionNotFound = errors.New("action not found in step")
)
