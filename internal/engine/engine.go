package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/calendar"
	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/telemetry"
)

// Outcome — итог одного вызова Perform.
type Outcome string

const (
	// OutcomePerformed — все действия выполнены, шаг перешёл в performed.
	OutcomePerformed Outcome = "performed"

	// OutcomeDeferred — дело не допускает выполнения, шаг сдвинут на день.
	OutcomeDeferred Outcome = "deferred"

	// OutcomeFinalized — финальный этап закрыл дело без передачи приставу.
	OutcomeFinalized Outcome = "finalized"

	// OutcomeActionsFailed — хотя бы одно действие не выполнено, шаг остался unperformed.
	OutcomeActionsFailed Outcome = "actions_failed"

	// OutcomeNotDue — время шага ещё не наступило (только PerformIfDue).
	OutcomeNotDue Outcome = "not_due"

	// OutcomeAlreadyPerformed — шаг уже выполнен, ничего не сделано.
	OutcomeAlreadyPerformed Outcome = "already_performed"
)

// Report — отчёт о выполнении шага.
type Report struct {
	StepID  uuid.UUID `json:"step_id"`
	CaseID  uuid.UUID `json:"case_id"`
	Outcome Outcome   `json:"outcome"`

	// ScheduledAt — плановое время шага после вызова.
	ScheduledAt time.Time `json:"scheduled_at"`

	// Results — результаты выполненных действий.
	Results []domain.ActionResult `json:"results,omitempty"`

	// Scheduled — ID созданных шагов-преемников.
	Scheduled []uuid.UUID `json:"scheduled,omitempty"`
}

// Engine — движок выполнения шагов взыскания.
//
// Каждая операция выполняется в одной транзакции: строка шага и строка
// дела блокируются, поэтому шаги одного дела выполняются строго
// последовательно, а начисление стоимости не теряет обновлений.
type Engine struct {
	steps      StepRepository
	actions    ActionRepository
	cases      CaseRepository
	templates  TemplateSource
	performers Performers
	notifier   Notifier
	tx         Transactor
	calendar   Calendar
	logger     *slog.Logger
	now        func() time.Time
}

// Config — конфигурация Engine.
type Config struct {
	Steps      StepRepository
	Actions    ActionRepository
	Cases      CaseRepository
	Templates  TemplateSource
	Performers Performers
	Notifier   Notifier

	// Tx — транзакции (опционально; без него операции выполняются без транзакции).
	Tx Transactor

	// Calendar — календарь рабочих дней (default: calendar.New()).
	Calendar Calendar

	Logger *slog.Logger

	// Now — источник времени (default: time.Now).
	Now func() time.Time
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cal := cfg.Calendar
	if cal == nil {
		cal = calendar.New()
	}

	tx := cfg.Tx
	if tx == nil {
		tx = noTx{}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		steps:      cfg.Steps,
		actions:    cfg.Actions,
		cases:      cfg.Cases,
		templates:  cfg.Templates,
		performers: cfg.Performers,
		notifier:   cfg.Notifier,
		tx:         tx,
		calendar:   cal,
		logger:     logger,
		now:        now,
	}
}

// Perform выполняет шаг.
//
//  1. Дело не допускает выполнения → шаг сдвигается на день, действия не трогаются.
//  2. Этап первого взыскания → до действий дело запускает взыскание и пересчитывает цены.
//  3. Финальный этап без автопередачи или без пристава → однократное уведомление
//     кредитора, шаг сдвигается на день, дело завершается. performed не наступает.
//  4. Иначе выполняются действия "perform"; если все успешны — шаг переходит в performed.
//
// Ошибки хранилища и уведомления возвращаются, транзакция откатывается.
func (e *Engine) Perform(ctx context.Context, stepID uuid.UUID) (*Report, error) {
	return e.perform(ctx, stepID, false)
}

// PerformIfDue выполняет шаг, только если его время наступило.
//
// Проверка делается под блокировкой, поэтому повторная доставка
// одного и того же шага не сдвигает его дважды.
func (e *Engine) PerformIfDue(ctx context.Context, stepID uuid.UUID) (*Report, error) {
	return e.perform(ctx, stepID, true)
}

func (e *Engine) perform(ctx context.Context, stepID uuid.UUID, onlyDue bool) (*Report, error) {
	var report *Report

	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		step, err := e.steps.GetForUpdate(ctx, stepID)
		if err != nil {
			return fmt.Errorf("load step %s: %w", stepID, err)
		}

		report = &Report{StepID: step.ID, CaseID: step.CaseID}

		if step.IsPerformed() {
			report.Outcome = OutcomeAlreadyPerformed
			report.ScheduledAt = step.ScheduledAt
			return nil
		}
		if onlyDue && !step.IsDue(e.now()) {
			report.Outcome = OutcomeNotDue
			report.ScheduledAt = step.ScheduledAt
			return nil
		}

		c, err := e.cases.GetForUpdate(ctx, step.CaseID)
		if err != nil {
			return fmt.Errorf("load case %s: %w", step.CaseID, err)
		}

		tpl, err := e.template(step)
		if err != nil {
			return err
		}

		return e.performLocked(ctx, step, c, tpl, report)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("step processed",
		"step_id", report.StepID,
		"case_id", report.CaseID,
		"outcome", report.Outcome,
		"scheduled_at", report.ScheduledAt,
		"successors", len(report.Scheduled),
	)
	return report, nil
}

// performLocked выполняет шаг под блокировкой шага и дела.
func (e *Engine) performLocked(ctx context.Context, step *domain.CaseStep, c *domain.Case, tpl *domain.WorkflowTemplate, report *Report) error {
	defer func() { report.ScheduledAt = step.ScheduledAt }()

	// 1. Дело приостановлено или оплачено — откладываем
	if !c.Performable() {
		step.Postpone(1)
		if err := e.saveStep(ctx, step); err != nil {
			return fmt.Errorf("defer step: %w", err)
		}
		telemetry.StepsDeferred.Inc()
		report.Outcome = OutcomeDeferred
		return nil
	}

	kind := domain.StepKindOrdinary
	if tpl != nil {
		kind = tpl.Kind
	}

	// 2. Первое взыскание: до любых действий
	if kind == domain.StepKindFirstCollection {
		effect := domain.CaseEffect{StartCollections: true, RecomputePrices: true}
		if err := e.cases.Apply(ctx, c, effect, e.now()); err != nil {
			return fmt.Errorf("start collections: %w", err)
		}
	}

	// 3. Финальный этап без передачи приставу
	if kind == domain.StepKindFinal && (!c.Autoforward || c.BailiffID == nil) {
		if err := e.finalize(ctx, step, c); err != nil {
			return err
		}
		telemetry.StepsFinalized.Inc()
		report.Outcome = OutcomeFinalized
		return nil
	}

	// 4. Действия шага
	set := e.actionSet(step)
	results, err := set.PerformScheduled(ctx, c, domain.ConditionPerform)
	if err != nil {
		return fmt.Errorf("perform actions: %w", err)
	}
	report.Results = results

	if !domain.AllSucceeded(results) {
		telemetry.StepsFailed.Inc()
		report.Outcome = OutcomeActionsFailed
		e.logger.Warn("step actions did not succeed",
			"step_id", step.ID,
			"case_id", step.CaseID,
			"results", len(results),
		)
		return nil
	}

	created, err := e.markPerformed(ctx, step, c, tpl)
	if err != nil {
		return err
	}
	report.Scheduled = created
	report.Outcome = OutcomePerformed
	return nil
}

// finalize закрывает дело на финальном этапе.
// Уведомление кредитора отправляется не больше одного раза.
func (e *Engine) finalize(ctx context.Context, step *domain.CaseStep, c *domain.Case) error {
	if !step.CreditorNotified && e.notifier == nil {
		return ErrNoNotifier
	}

	// Дело закрывается до уведомления: кредитор получает finished_at.
	if !c.IsFinished() {
		if err := e.cases.Apply(ctx, c, domain.CaseEffect{Finish: true}, e.now()); err != nil {
			return fmt.Errorf("finish case: %w", err)
		}
	}

	if !step.CreditorNotified {
		if err := e.notifier.SendCaseFinished(ctx, c); err != nil {
			return fmt.Errorf("send case finished: %w", err)
		}
		telemetry.CaseFinishedNotifications.Inc()
	}
	step.MarkCreditorNotified()
	step.Postpone(1)

	if err := e.saveStep(ctx, step); err != nil {
		return fmt.Errorf("save final step: %w", err)
	}
	return nil
}

// markPerformed переводит шаг в performed, планирует преемников
// и начисляет стоимость этапа (даже нулевую).
func (e *Engine) markPerformed(ctx context.Context, step *domain.CaseStep, c *domain.Case, tpl *domain.WorkflowTemplate) ([]uuid.UUID, error) {
	now := e.now()

	step.MarkPerformed(now)
	if err := e.saveStep(ctx, step); err != nil {
		return nil, fmt.Errorf("mark performed: %w", err)
	}
	telemetry.StepsPerformed.Inc()

	created, err := e.scheduleNext(ctx, step, tpl)
	if err != nil {
		return nil, fmt.Errorf("schedule next: %w", err)
	}

	price := e.price(tpl)
	if err := e.cases.Apply(ctx, c, domain.BillingEffect(price), now); err != nil {
		return nil, fmt.Errorf("accumulate billing: %w", err)
	}
	telemetry.BillingCents.Add(float64(price.Shift(2).IntPart()))

	return created, nil
}

// template возвращает шаблон шага (nil для ручного шага).
func (e *Engine) template(step *domain.CaseStep) (*domain.WorkflowTemplate, error) {
	if step.IsAdHoc() {
		return nil, nil
	}
	tpl, err := e.templates.Template(*step.TemplateRef)
	if err != nil {
		return nil, fmt.Errorf("template of step %s: %w", step.ID, err)
	}
	return tpl, nil
}

// actionSet создаёт набор действий шага.
func (e *Engine) actionSet(step *domain.CaseStep) *ActionSet {
	return &ActionSet{
		step:       step,
		repo:       e.actions,
		performers: e.performers,
		save:       e.saveStep,
		now:        e.now,
		logger:     e.logger,
	}
}

// noTx выполняет fn без транзакции.
type noTx struct{}

func (noTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
