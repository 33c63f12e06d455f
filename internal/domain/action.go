package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConditionPerform — условие действий, выполняемых при выполнении шага.
const ConditionPerform = "perform"

// Action — атомарная задача шага (уведомление должника, начисление сбора,
// передача приставу).
//
// Действие принадлежит ровно одному шагу и удаляется вместе с ним.
// Порядок выполнения внутри шага — по возрастанию Type.
type Action struct {
	// ID — уникальный идентификатор действия.
	ID uuid.UUID `json:"id"`

	// StepID — шаг, которому принадлежит действие.
	StepID uuid.UUID `json:"step_id"`

	// Type — тип действия, определяет исполнителя и порядок.
	Type string `json:"type"`

	// Condition — при каком событии шага выполняется действие.
	Condition string `json:"condition"`

	// State — состояние действия.
	State ActionState `json:"state"`

	// DelayDays — задержка относительно времени шага.
	DelayDays int `json:"delay_days"`

	// RunAt — самое раннее время выполнения.
	// Вычисляется один раз через ResolveRunAt и больше не меняется.
	RunAt *time.Time `json:"run_at,omitempty"`

	// Document — шаблон документа для действия (письмо, счёт).
	Document string `json:"document,omitempty"`

	// Amount — сумма (для начислений).
	Amount decimal.Decimal `json:"amount"`

	PerformedAt *time.Time `json:"performed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsPerformed возвращает true, если действие выполнено.
func (a *Action) IsPerformed() bool {
	return a.State == ActionPerformed
}

// ResolveRunAt возвращает самое раннее время выполнения относительно ref.
// Результат запоминается: последующие вызовы возвращают то же значение.
func (a *Action) ResolveRunAt(ref time.Time) time.Time {
	if a.RunAt == nil {
		runAt := ref.AddDate(0, 0, a.DelayDays)
		a.RunAt = &runAt
	}
	return *a.RunAt
}

// MarkPerformed переводит действие в performed.
func (a *Action) MarkPerformed(now time.Time) {
	a.State = ActionPerformed
	a.PerformedAt = &now
}

// ActionTemplate — описание действия в шаблоне шага.
type ActionTemplate struct {
	Type      string          `json:"type"`
	Condition string          `json:"condition"`
	DelayDays int             `json:"delay_days"`
	Document  string          `json:"document,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}

// CloneToCaseAction создаёт невыполненное действие шага по шаблону.
func (t ActionTemplate) CloneToCaseAction(stepID uuid.UUID, now time.Time) *Action {
	condition := t.Condition
	if condition == "" {
		condition = ConditionPerform
	}
	return &Action{
		ID:        uuid.New(),
		StepID:    stepID,
		Type:      t.Type,
		Condition: condition,
		State:     ActionUnperformed,
		DelayDays: t.DelayDays,
		Document:  t.Document,
		Amount:    t.Amount,
		CreatedAt: now,
	}
}

// ResultStatus — итог выполнения действия.
type ResultStatus string

const (
	// ResultSucceeded — действие выполнено.
	ResultSucceeded ResultStatus = "succeeded"

	// ResultFailed — действие явно завершилось ошибкой.
	ResultFailed ResultStatus = "failed"

	// ResultIndeterminate — исход неизвестен (таймаут, обрыв соединения).
	// Действие остаётся невыполненным, шаг не переходит в performed.
	ResultIndeterminate ResultStatus = "indeterminate"
)

// ActionResult — результат выполнения одного действия.
type ActionResult struct {
	ActionID uuid.UUID    `json:"action_id"`
	Type     string       `json:"type"`
	Status   ResultStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
}

// Succeeded возвращает true только для ResultSucceeded.
func (r ActionResult) Succeeded() bool {
	return r.Status == ResultSucceeded
}

// AllSucceeded возвращает true, если все действия выполнены успешно.
// Пустой список считается успехом.
func AllSucceeded(results []ActionResult) bool {
	for _, r := range results {
		if !r.Succeeded() {
			return false
		}
	}
	return true
}
