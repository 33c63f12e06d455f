package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeStepDue         MessageType = "step.due"
	MessageTypeCaseFinished    MessageType = "case.finished"
	MessageTypeDebtorNotice    MessageType = "debtor.notice"
	MessageTypeFeePosted       MessageType = "fee.posted"
	MessageTypeBailiffHandover MessageType = "bailiff.handover"
)

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// envelope — входящий конверт с неразобранным payload.
type envelope struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// StepDuePayload — шаг готов к выполнению. Потребитель: worker.
type StepDuePayload struct {
	StepID      uuid.UUID `json:"step_id"`
	CaseID      uuid.UUID `json:"case_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// CaseFinishedPayload — дело завершено без передачи приставу.
// Потребитель: сервис уведомлений кредиторов.
type CaseFinishedPayload struct {
	CaseID        uuid.UUID       `json:"case_id"`
	CaseReference string          `json:"case_reference"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	BillingTotal  decimal.Decimal `json:"billing_total"`
}

// DebtorNoticePayload — письмо должнику.
type DebtorNoticePayload struct {
	ActionID      uuid.UUID `json:"action_id"`
	CaseID        uuid.UUID `json:"case_id"`
	CaseReference string    `json:"case_reference"`
	DebtorName    string    `json:"debtor_name"`
	DebtorEmail   string    `json:"debtor_email"`
	Document      string    `json:"document,omitempty"`
}

// FeePostedPayload — начисление сбора в бухгалтерию.
type FeePostedPayload struct {
	ActionID      uuid.UUID       `json:"action_id"`
	CaseID        uuid.UUID       `json:"case_id"`
	CaseReference string          `json:"case_reference"`
	Amount        decimal.Decimal `json:"amount"`
	Document      string          `json:"document,omitempty"`
}

// BailiffHandoverPayload — передача дела судебному приставу.
type BailiffHandoverPayload struct {
	ActionID      uuid.UUID       `json:"action_id"`
	CaseID        uuid.UUID       `json:"case_id"`
	CaseReference string          `json:"case_reference"`
	BailiffID     uuid.UUID       `json:"bailiff_id"`
	Principal     decimal.Decimal `json:"principal"`
	Document      string          `json:"document,omitempty"`
}

// ParsePayload разбирает payload доставленного сообщения в T.
func ParsePayload[T any](d *Delivery) (T, error) {
	var result T
	if len(d.Payload) == 0 {
		return result, fmt.Errorf("message %s: empty payload", d.ID)
	}
	if err := json.Unmarshal(d.Payload, &result); err != nil {
		return result, fmt.Errorf("message %s: unmarshal payload: %w", d.ID, err)
	}
	return result, nil
}
