package domain

import "github.com/shopspring/decimal"

// WorkflowTemplate — неизменяемое описание этапа взыскания.
//
// Шаблоны загружаются из каталога (internal/catalog) и не хранятся в БД.
// Шаг дела ссылается на шаблон по Reference.
type WorkflowTemplate struct {
	// Reference — порядковая ссылка шаблона ("1", "2", ...).
	Reference string `json:"reference"`

	// Label — название этапа.
	Label string `json:"label"`

	// Kind — вид этапа, определяет особое поведение при выполнении.
	Kind StepKind `json:"kind"`

	// Price — стоимость выполнения этапа (0, если не задана).
	Price decimal.Decimal `json:"price"`

	// NeedsNotification — этап требует уведомления должника.
	NeedsNotification bool `json:"needs_notification"`

	// OwnerPerformable — этап может выполнить владелец дела вручную.
	OwnerPerformable bool `json:"owner_performable"`

	// Actions — действия, копируемые в каждый шаг этого этапа.
	Actions []ActionTemplate `json:"actions,omitempty"`

	// Next — этапы-преемники со смещением в днях.
	Next []Successor `json:"next,omitempty"`
}

// Successor — ссылка на следующий этап.
type Successor struct {
	Reference string `json:"reference"`

	// AfterDays — через сколько дней после выполнения планировать (>= 0).
	AfterDays int `json:"after_days"`
}

// AfterStepInDays возвращает смещение преемника в днях.
// ok=false, если ref не является преемником этого этапа.
func (t *WorkflowTemplate) AfterStepInDays(ref string) (days int, ok bool) {
	for _, s := range t.Next {
		if s.Reference == ref {
			return s.AfterDays, true
		}
	}
	return 0, false
}

// HasSuccessors возвращает true, если у этапа есть преемники.
func (t *WorkflowTemplate) HasSuccessors() bool {
	return len(t.Next) > 0
}
