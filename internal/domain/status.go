package domain

import "fmt"

// StepState — состояние шага взыскания.
//
// Жизненный цикл:
//
//	unperformed → performed
//
// Обратного перехода нет.
type StepState string

const (
	// StepUnperformed — шаг запланирован, но ещё не выполнен.
	StepUnperformed StepState = "unperformed"

	// StepPerformed — шаг выполнен (финальное состояние).
	StepPerformed StepState = "performed"
)

// IsValid возвращает true для известных состояний.
func (s StepState) IsValid() bool {
	return s == StepUnperformed || s == StepPerformed
}

// ActionState — состояние действия внутри шага.
type ActionState string

const (
	ActionUnperformed ActionState = "unperformed"
	ActionPerformed   ActionState = "performed"
)

// CaseState — состояние дела.
//
// Движок только читает его (performable) и запрашивает переход
// в finished через CaseEffect.
type CaseState string

const (
	// CaseOpen — дело в работе.
	CaseOpen CaseState = "open"

	// CasePaused — дело приостановлено, шаги откладываются.
	CasePaused CaseState = "paused"

	// CasePaid — долг оплачен, шаги больше не выполняются.
	CasePaid CaseState = "paid"

	// CaseFinished — взыскание завершено.
	CaseFinished CaseState = "finished"
)

// StepKind — вид шаблона шага.
//
// Определяет особое поведение при выполнении шага:
//   - StepKindFirstCollection — запускает процесс взыскания и пересчёт цен
//   - StepKindFinal — завершает дело, если нет передачи судебному приставу
type StepKind string

const (
	StepKindOrdinary        StepKind = "ordinary"
	StepKindFirstCollection StepKind = "first_collection"
	StepKindFinal           StepKind = "final"
)

// Ссылки шаблонов, вид которых определяется без явного kind.
const (
	FirstCollectionReference = "1"
	FinalReference           = "6"
)

// KindForReference возвращает вид шаблона по его ссылке.
// Используется, когда в каталоге kind не указан.
func KindForReference(ref string) StepKind {
	switch ref {
	case FirstCollectionReference:
		return StepKindFirstCollection
	case FinalReference:
		return StepKindFinal
	default:
		return StepKindOrdinary
	}
}

// ParseStepKind парсит строку в StepKind.
func ParseStepKind(s string) (StepKind, error) {
	switch k := StepKind(s); k {
	case StepKindOrdinary, StepKindFirstCollection, StepKindFinal:
		return k, nil
	default:
		return "", fmt.Errorf("unknown step kind %q", s)
	}
}
