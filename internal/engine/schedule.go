package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/telemetry"
)

// ScheduleNext создаёт шаги-преемники для шага stepID.
//
// Повторный вызов безопасен: преемник, уже существующий в деле,
// не создаётся второй раз. Возвращает ID созданных шагов.
func (e *Engine) ScheduleNext(ctx context.Context, stepID uuid.UUID) ([]uuid.UUID, error) {
	var created []uuid.UUID

	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		step, err := e.steps.GetForUpdate(ctx, stepID)
		if err != nil {
			return fmt.Errorf("load step %s: %w", stepID, err)
		}
		tpl, err := e.template(step)
		if err != nil {
			return err
		}
		created, err = e.scheduleNext(ctx, step, tpl)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// StartWorkflow создаёт шаг этапа ref для дела на время at и копирует
// в него действия шаблона. Так создаётся первый шаг дела.
func (e *Engine) StartWorkflow(ctx context.Context, caseID uuid.UUID, ref string, at time.Time) (*domain.CaseStep, error) {
	var step *domain.CaseStep

	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := e.cases.GetForUpdate(ctx, caseID); err != nil {
			return fmt.Errorf("load case %s: %w", caseID, err)
		}
		tpl, err := e.templates.Template(ref)
		if err != nil {
			return err
		}
		step, err = e.createFromTemplate(ctx, caseID, tpl, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// CreateAdHocStep создаёт ручной шаг дела без шаблона.
func (e *Engine) CreateAdHocStep(ctx context.Context, caseID uuid.UUID, label string, at time.Time) (*domain.CaseStep, error) {
	step := domain.NewCaseStep(caseID, nil, label, at, e.now())

	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := e.cases.GetForUpdate(ctx, caseID); err != nil {
			return fmt.Errorf("load case %s: %w", caseID, err)
		}
		return e.createStep(ctx, step)
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// AddAction добавляет действие в шаг и пересчитывает время шага.
func (e *Engine) AddAction(ctx context.Context, stepID uuid.UUID, action *domain.Action) error {
	return e.tx.WithinTx(ctx, func(ctx context.Context) error {
		step, err := e.mutableStep(ctx, stepID)
		if err != nil {
			return err
		}
		return e.actionSet(step).Add(ctx, action)
	})
}

// RemoveAction удаляет действие из шага и пересчитывает время шага.
func (e *Engine) RemoveAction(ctx context.Context, stepID, actionID uuid.UUID) error {
	return e.tx.WithinTx(ctx, func(ctx context.Context) error {
		step, err := e.mutableStep(ctx, stepID)
		if err != nil {
			return err
		}
		return e.actionSet(step).Remove(ctx, actionID)
	})
}

func (e *Engine) mutableStep(ctx context.Context, stepID uuid.UUID) (*domain.CaseStep, error) {
	step, err := e.steps.GetForUpdate(ctx, stepID)
	if err != nil {
		return nil, fmt.Errorf("load step %s: %w", stepID, err)
	}
	if step.IsPerformed() {
		return nil, ErrStepPerformed
	}
	return step, nil
}

// scheduleNext создаёт преемников шага.
//
// Базовое время — плановое время шага, если оно в будущем (шаг выполнили
// досрочно вручную), иначе текущее время. Так досрочное выполнение
// не сжимает оставшийся график.
func (e *Engine) scheduleNext(ctx context.Context, step *domain.CaseStep, tpl *domain.WorkflowTemplate) ([]uuid.UUID, error) {
	if tpl == nil || !tpl.HasSuccessors() {
		return nil, nil
	}

	base := e.now()
	if step.ScheduledAt.After(base) {
		base = step.ScheduledAt
	}

	var created []uuid.UUID
	for _, succ := range tpl.Next {
		exists, err := e.steps.ExistsForTemplate(ctx, step.CaseID, succ.Reference)
		if err != nil {
			return created, fmt.Errorf("check successor %q: %w", succ.Reference, err)
		}
		if exists {
			continue
		}

		nextTpl, err := e.templates.Template(succ.Reference)
		if err != nil {
			return created, err
		}

		next, err := e.createFromTemplate(ctx, step.CaseID, nextTpl, base.AddDate(0, 0, succ.AfterDays))
		if err != nil {
			return created, err
		}
		created = append(created, next.ID)
		telemetry.StepsScheduled.Inc()

		e.logger.Debug("successor scheduled",
			"step_id", next.ID,
			"case_id", next.CaseID,
			"template", succ.Reference,
			"scheduled_at", next.ScheduledAt,
		)
	}

	return created, nil
}

// createFromTemplate создаёт шаг этапа tpl и копирует в него действия шаблона.
// Каждое добавление действия пересчитывает время шага.
func (e *Engine) createFromTemplate(ctx context.Context, caseID uuid.UUID, tpl *domain.WorkflowTemplate, at time.Time) (*domain.CaseStep, error) {
	ref := tpl.Reference
	step := domain.NewCaseStep(caseID, &ref, tpl.Label, at, e.now())

	if err := e.createStep(ctx, step); err != nil {
		return nil, fmt.Errorf("create step %q: %w", ref, err)
	}

	set := e.actionSet(step)
	for _, actionTpl := range tpl.Actions {
		if err := set.Add(ctx, actionTpl.CloneToCaseAction(step.ID, e.now())); err != nil {
			return nil, fmt.Errorf("clone action %s: %w", actionTpl.Type, err)
		}
	}
	return step, nil
}

// createStep сохраняет новый шаг.
// Время сдвигается на рабочий день до проверки инвариантов.
func (e *Engine) createStep(ctx context.Context, step *domain.CaseStep) error {
	step.ScheduledAt = e.calendar.Adjust(step.ScheduledAt)
	if err := step.Validate(); err != nil {
		return err
	}

	if step.TemplateRef != nil {
		exists, err := e.steps.ExistsForTemplate(ctx, step.CaseID, *step.TemplateRef)
		if err != nil {
			return fmt.Errorf("check uniqueness: %w", err)
		}
		if exists {
			return duplicateStepError()
		}
	}

	if err := e.steps.Create(ctx, step); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return err
		}
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// saveStep сохраняет изменённый шаг.
// Время сдвигается на рабочий день до проверки инвариантов.
func (e *Engine) saveStep(ctx context.Context, step *domain.CaseStep) error {
	step.ScheduledAt = e.calendar.Adjust(step.ScheduledAt)
	step.UpdatedAt = e.now()
	if err := step.Validate(); err != nil {
		return err
	}
	return e.steps.Update(ctx, step)
}

// price возвращает стоимость этапа (0 для ручного шага).
func (e *Engine) price(tpl *domain.WorkflowTemplate) decimal.Decimal {
	if tpl == nil {
		return decimal.Zero
	}
	return tpl.Price
}

func duplicateStepError() error {
	return &domain.ValidationError{Entity: "case_step", Field: "TemplateRef", Rule: "unique"}
}
