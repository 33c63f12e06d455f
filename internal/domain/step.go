package domain

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// validate — общий валидатор структур домена (безопасен для конкурентного использования).
var validate = validator.New(validator.WithRequiredStructEnabled())

// CaseStep — конкретное вхождение шаблона шага в дело.
//
// Шаг создаётся либо как первый шаг дела (извне), либо при
// планировании преемников выполненного шага. Шаг без шаблона
// (TemplateRef == nil) — ручной (ad hoc).
//
// Инварианты:
//   - State всегда unperformed или performed
//   - ScheduledAt приходится на рабочий день перед сохранением
//   - PerformedAt устанавливается ровно один раз
//   - на одно дело не больше одного шага с данным TemplateRef
type CaseStep struct {
	// ID — уникальный идентификатор шага.
	ID uuid.UUID `json:"id"`

	// CaseID — дело, которому принадлежит шаг.
	CaseID uuid.UUID `json:"case_id" validate:"required"`

	// TemplateRef — ссылка на шаблон (nil для ручных шагов).
	TemplateRef *string `json:"template_ref,omitempty"`

	// Label — название шага (копия из шаблона для отчётов).
	Label string `json:"label,omitempty"`

	// State — состояние шага.
	State StepState `json:"state" validate:"oneof=unperformed performed"`

	// ScheduledAt — время, начиная с которого шаг можно выполнять.
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`

	// PerformedAt — время выполнения.
	PerformedAt *time.Time `json:"performed_at,omitempty"`

	// CreditorNotified — кредитору отправлено уведомление о завершении дела.
	CreditorNotified bool `json:"creditor_notified"`

	// NotifiedDebtor — должник уведомлён о шаге (читается отчётами).
	NotifiedDebtor bool `json:"notified_debtor"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCaseStep создаёт невыполненный шаг дела.
func NewCaseStep(caseID uuid.UUID, templateRef *string, label string, scheduledAt, now time.Time) *CaseStep {
	return &CaseStep{
		ID:          uuid.New(),
		CaseID:      caseID,
		TemplateRef: templateRef,
		Label:       label,
		State:       StepUnperformed,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsPerformed возвращает true, если шаг выполнен.
func (s *CaseStep) IsPerformed() bool {
	return s.State == StepPerformed
}

// IsAdHoc возвращает true для шага без шаблона.
func (s *CaseStep) IsAdHoc() bool {
	return s.TemplateRef == nil
}

// Reference возвращает ссылку шаблона или "" для ручного шага.
func (s *CaseStep) Reference() string {
	if s.TemplateRef == nil {
		return ""
	}
	return *s.TemplateRef
}

// IsDue возвращает true, если шаг не выполнен и его время наступило.
func (s *CaseStep) IsDue(now time.Time) bool {
	return !s.IsPerformed() && !s.ScheduledAt.After(now)
}

// HistoryDate — дата для истории дела: время выполнения или плановое время.
func (s *CaseStep) HistoryDate() time.Time {
	if s.PerformedAt != nil {
		return *s.PerformedAt
	}
	return s.ScheduledAt
}

// Postpone сдвигает плановое время на days дней.
// Рабочий день подбирается при сохранении.
func (s *CaseStep) Postpone(days int) {
	s.ScheduledAt = s.ScheduledAt.AddDate(0, 0, days)
}

// MarkPerformed переводит шаг в performed.
func (s *CaseStep) MarkPerformed(now time.Time) {
	s.State = StepPerformed
	s.PerformedAt = &now
	s.UpdatedAt = now
}

// MarkCreditorNotified отмечает, что уведомление о завершении отправлено.
func (s *CaseStep) MarkCreditorNotified() {
	s.CreditorNotified = true
}

// Validate проверяет инварианты шага, не зависящие от хранилища.
// Уникальность (дело, шаблон) проверяется при сохранении.
func (s *CaseStep) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &ValidationError{
			Entity: "case_step",
			Field:  fieldErrs[0].Field(),
			Rule:   fieldErrs[0].Tag(),
		}
	}
	return err
}
