package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/mq"
	"github.com/shaiso/Collector/internal/repo"
	"github.com/shaiso/Collector/internal/telemetry"
)

// handleStepDue обрабатывает сообщение из очереди steps.due.
//
// Исходы:
//   - шаг выполнен, отложен, ещё не due или уже выполнен — ack
//   - шаг или дело удалены — ack
//   - некорректное сообщение или нарушение инвариантов — DLQ
//   - прочие ошибки (БД, брокер) — возврат в очередь
func (w *Worker) handleStepDue(ctx context.Context, d *mq.Delivery) error {
	if d.Type != mq.MessageTypeStepDue {
		return mq.Permanent(fmt.Errorf("%w: %s", ErrUnexpectedMessage, d.Type))
	}

	payload, err := mq.ParsePayload[mq.StepDuePayload](d)
	if err != nil {
		return mq.Permanent(err)
	}
	if payload.StepID == uuid.Nil {
		return mq.Permanent(fmt.Errorf("%w: empty step_id", ErrUnexpectedMessage))
	}

	err = w.processStep(ctx, payload.StepID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStepGone):
		w.logger.Debug("step no longer exists", "step_id", payload.StepID)
		return nil
	case errors.Is(err, domain.ErrValidation):
		return mq.Permanent(err)
	default:
		return err
	}
}

// processStep выполняет один шаг.
func (w *Worker) processStep(ctx context.Context, stepID uuid.UUID) error {
	logger := telemetry.WithStepID(w.logger, stepID)

	report, err := w.performer.PerformIfDue(telemetry.WithLogger(ctx, logger), stepID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrStepGone, stepID)
		}
		return fmt.Errorf("perform step %s: %w", stepID, err)
	}

	telemetry.WithCaseID(logger, report.CaseID).Debug("step handled",
		"outcome", report.Outcome,
		"scheduled_at", report.ScheduledAt,
	)
	return nil
}
