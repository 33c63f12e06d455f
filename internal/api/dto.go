package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/domain"
)

// --- Case DTOs ---

// CaseResponse — ответ с делом. Суммы — строки с двумя знаками.
type CaseResponse struct {
	ID                   uuid.UUID  `json:"id"`
	Reference            string     `json:"reference"`
	State                string     `json:"state"`
	Autoforward          bool       `json:"autoforward"`
	BailiffID            *uuid.UUID `json:"bailiff_id,omitempty"`
	DebtorName           string     `json:"debtor_name"`
	Principal            string     `json:"principal"`
	CollectionCosts      string     `json:"collection_costs"`
	Billing              string     `json:"billing"`
	CollectionsStartedAt *time.Time `json:"collections_started_at,omitempty"`
	FinishedAt           *time.Time `json:"finished_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// CaseFromDomain конвертирует domain.Case в CaseResponse.
func CaseFromDomain(c *domain.Case) CaseResponse {
	return CaseResponse{
		ID:                   c.ID,
		Reference:            c.Reference,
		State:                string(c.State),
		Autoforward:          c.Autoforward,
		BailiffID:            c.BailiffID,
		DebtorName:           c.DebtorName,
		Principal:            c.Principal.StringFixed(2),
		CollectionCosts:      c.CollectionCosts.StringFixed(2),
		Billing:              c.BillingTotal().StringFixed(2),
		CollectionsStartedAt: c.CollectionsStartedAt,
		FinishedAt:           c.FinishedAt,
		CreatedAt:            c.CreatedAt,
	}
}

// --- Step DTOs ---

// CreateStepRequest — запрос на создание шага дела.
// С Template создаётся шаг этапа, без него — ручной шаг с Label.
type CreateStepRequest struct {
	Template string     `json:"template,omitempty"`
	Label    string     `json:"label,omitempty"`
	At       *time.Time `json:"at,omitempty"`
}

// StepResponse — ответ с шагом.
type StepResponse struct {
	ID               uuid.UUID  `json:"id"`
	CaseID           uuid.UUID  `json:"case_id"`
	Template         string     `json:"template,omitempty"`
	Label            string     `json:"label,omitempty"`
	State            string     `json:"state"`
	ScheduledAt      time.Time  `json:"scheduled_at"`
	PerformedAt      *time.Time `json:"performed_at,omitempty"`
	HistoryDate      time.Time  `json:"history_date"`
	CreditorNotified bool       `json:"creditor_notified"`
}

// StepFromDomain конвертирует domain.CaseStep в StepResponse.
func StepFromDomain(s *domain.CaseStep) StepResponse {
	return StepResponse{
		ID:               s.ID,
		CaseID:           s.CaseID,
		Template:         s.Reference(),
		Label:            s.Label,
		State:            string(s.State),
		ScheduledAt:      s.ScheduledAt,
		PerformedAt:      s.PerformedAt,
		HistoryDate:      s.HistoryDate(),
		CreditorNotified: s.CreditorNotified,
	}
}

// ScheduleNextResponse — созданные шаги-преемники.
type ScheduleNextResponse struct {
	Created []uuid.UUID `json:"created"`
}

// --- Catalog & calendar DTOs ---

// TemplateResponse — шаблон этапа.
type TemplateResponse struct {
	Reference string             `json:"reference"`
	Label     string             `json:"label"`
	Kind      string             `json:"kind"`
	Price     string             `json:"price"`
	Actions   []string           `json:"actions"`
	Next      []domain.Successor `json:"next,omitempty"`
}

// TemplateFromDomain конвертирует domain.WorkflowTemplate в TemplateResponse.
func TemplateFromDomain(t *domain.WorkflowTemplate) TemplateResponse {
	actions := make([]string, len(t.Actions))
	for i, a := range t.Actions {
		actions[i] = a.Type
	}
	return TemplateResponse{
		Reference: t.Reference,
		Label:     t.Label,
		Kind:      string(t.Kind),
		Price:     t.Price.StringFixed(2),
		Actions:   actions,
		Next:      t.Next,
	}
}

// AdjustResponse — результат сдвига на рабочий день.
type AdjustResponse struct {
	Input       time.Time `json:"input"`
	Adjusted    time.Time `json:"adjusted"`
	BusinessDay bool      `json:"business_day"`
	Holiday     string    `json:"holiday,omitempty"`
}
