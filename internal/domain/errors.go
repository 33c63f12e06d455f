package domain

import (
	"errors"
	"fmt"
)

// ErrValidation — общая ошибка валидации сущностей.
// Конкретные ошибки (*ValidationError) разворачиваются в неё через errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError — нарушение инварианта сущности.
type ValidationError struct {
	// Entity — имя сущности ("case_step", "template").
	Entity string

	// Field — поле, нарушившее правило.
	Field string

	// Rule — нарушенное правило ("required", "oneof", "unique").
	Rule string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: field %s violates %s", e.Entity, e.Field, e.Rule)
}

// Unwrap позволяет проверять errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
