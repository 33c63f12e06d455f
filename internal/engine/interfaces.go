package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/domain"
)

// StepRepository — хранилище шагов дела.
type StepRepository interface {
	// GetForUpdate загружает шаг и блокирует его строку до конца транзакции.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.CaseStep, error)
	Create(ctx context.Context, step *domain.CaseStep) error
	Update(ctx context.Context, step *domain.CaseStep) error

	// ExistsForTemplate проверяет, есть ли у дела шаг с данным шаблоном.
	ExistsForTemplate(ctx context.Context, caseID uuid.UUID, templateRef string) (bool, error)
}

// ActionRepository — хранилище действий шага.
type ActionRepository interface {
	ListByStep(ctx context.Context, stepID uuid.UUID) ([]domain.Action, error)
	Create(ctx context.Context, action *domain.Action) error
	Update(ctx context.Context, action *domain.Action) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CaseRepository — хранилище дел.
type CaseRepository interface {
	// GetForUpdate загружает дело и блокирует его строку до конца транзакции.
	// Все шаги одного дела выполняются последовательно.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Case, error)

	// Apply применяет эффект шага к делу и сохраняет его.
	Apply(ctx context.Context, c *domain.Case, effect domain.CaseEffect, now time.Time) error
}

// Transactor выполняет fn в одной транзакции БД.
// Вложенный вызов переиспользует внешнюю транзакцию.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TemplateSource — каталог шаблонов этапов.
type TemplateSource interface {
	Template(ref string) (*domain.WorkflowTemplate, error)
}

// Performers выполняет действия по их типу.
type Performers interface {
	// Performable сообщает, можно ли выполнить действие для дела.
	// Невыполнимые действия удаляются без повторных попыток.
	Performable(ctx context.Context, c *domain.Case, action *domain.Action) bool

	// Perform выполняет действие и возвращает строгий трёхзначный результат.
	Perform(ctx context.Context, c *domain.Case, action *domain.Action) domain.ActionResult
}

// Notifier отправляет кредитору уведомление о завершении дела.
// Вызов синхронный, ошибка транспорта возвращается вызывающему.
type Notifier interface {
	SendCaseFinished(ctx context.Context, c *domain.Case) error
}

// Calendar сдвигает время на рабочий день.
type Calendar interface {
	Adjust(t time.Time) time.Time
}
