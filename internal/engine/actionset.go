package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/telemetry"
)

// ActionSet — набор действий одного шага.
//
// Любое изменение набора (Add, Remove) сразу пересчитывает плановое
// время шага: оно равно самому раннему времени среди невыполненных
// действий. Если невыполненных действий нет, время не меняется.
type ActionSet struct {
	step       *domain.CaseStep
	repo       ActionRepository
	performers Performers
	save       func(ctx context.Context, step *domain.CaseStep) error
	now        func() time.Time
	logger     *slog.Logger

	actions []*domain.Action
	loaded  bool
}

// load лениво загружает действия шага.
func (s *ActionSet) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	list, err := s.repo.ListByStep(ctx, s.step.ID)
	if err != nil {
		return fmt.Errorf("list actions: %w", err)
	}
	s.actions = make([]*domain.Action, len(list))
	for i := range list {
		s.actions[i] = &list[i]
	}
	s.loaded = true
	return nil
}

// Unperformed возвращает невыполненные действия шага.
func (s *ActionSet) Unperformed(ctx context.Context) ([]*domain.Action, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	var out []*domain.Action
	for _, a := range s.actions {
		if !a.IsPerformed() {
			out = append(out, a)
		}
	}
	return out, nil
}

// Add сохраняет действие в шаге и пересчитывает время шага.
func (s *ActionSet) Add(ctx context.Context, action *domain.Action) error {
	if err := s.load(ctx); err != nil {
		return err
	}

	action.StepID = s.step.ID
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if action.State == "" {
		action.State = domain.ActionUnperformed
	}
	if action.Condition == "" {
		action.Condition = domain.ConditionPerform
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = s.now()
	}
	action.ResolveRunAt(s.step.ScheduledAt)

	if err := s.repo.Create(ctx, action); err != nil {
		return fmt.Errorf("create action: %w", err)
	}
	s.actions = append(s.actions, action)

	_, err := s.Reschedule(ctx)
	return err
}

// Remove удаляет действие из шага и пересчитывает время шага.
func (s *ActionSet) Remove(ctx context.Context, actionID uuid.UUID) error {
	if err := s.load(ctx); err != nil {
		return err
	}

	idx := slices.IndexFunc(s.actions, func(a *domain.Action) bool { return a.ID == actionID })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrActionNotFound, actionID)
	}
	if err := s.repo.Delete(ctx, actionID); err != nil {
		return fmt.Errorf("delete action: %w", err)
	}
	s.actions = slices.Delete(s.actions, idx, idx+1)

	_, err := s.Reschedule(ctx)
	return err
}

// Reschedule выставляет время шага по самому раннему невыполненному действию.
// Возвращает true, если время шага изменилось.
func (s *ActionSet) Reschedule(ctx context.Context) (bool, error) {
	pending, err := s.Unperformed(ctx)
	if err != nil {
		return false, err
	}
	if len(pending) == 0 {
		return false, nil
	}

	earliest := s.runAt(pending[0])
	for _, a := range pending[1:] {
		if runAt := s.runAt(a); runAt.Before(earliest) {
			earliest = runAt
		}
	}

	if earliest.Equal(s.step.ScheduledAt) {
		return false, nil
	}

	s.step.ScheduledAt = earliest
	if err := s.save(ctx, s.step); err != nil {
		return false, fmt.Errorf("reschedule step: %w", err)
	}
	return true, nil
}

// runAt возвращает время действия относительно текущего времени шага.
// Запомненное время, оставшееся до отсрочки шага, не возвращает шаг в прошлое.
func (s *ActionSet) runAt(a *domain.Action) time.Time {
	runAt := a.ResolveRunAt(s.step.ScheduledAt)
	if runAt.Before(s.step.ScheduledAt) {
		return s.step.ScheduledAt
	}
	return runAt
}

// PerformScheduled выполняет невыполненные действия с условием condition.
//
// Невыполнимые действия удаляются без повторных попыток. Остальные
// выполняются по возрастанию типа: порядок важен (уведомление должника
// раньше начисления сбора). Ошибка одного действия не прерывает
// остальные. Успешные действия сохраняются как выполненные.
func (s *ActionSet) PerformScheduled(ctx context.Context, c *domain.Case, condition string) ([]domain.ActionResult, error) {
	pending, err := s.Unperformed(ctx)
	if err != nil {
		return nil, err
	}

	var runnable []*domain.Action
	for _, a := range pending {
		if a.Condition != condition {
			continue
		}
		if !s.performers.Performable(ctx, c, a) {
			if err := s.discard(ctx, a); err != nil {
				return nil, err
			}
			continue
		}
		runnable = append(runnable, a)
	}

	slices.SortStableFunc(runnable, func(a, b *domain.Action) int {
		return cmp.Or(
			cmp.Compare(a.Type, b.Type),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID.String(), b.ID.String()),
		)
	})

	results := make([]domain.ActionResult, 0, len(runnable))
	for _, a := range runnable {
		res := s.performers.Perform(ctx, c, a)
		res.ActionID = a.ID
		res.Type = a.Type
		results = append(results, res)
		telemetry.ActionsExecuted.WithLabelValues(a.Type, string(res.Status)).Inc()

		if !res.Succeeded() {
			s.logger.Warn("action did not succeed",
				"action_id", a.ID,
				"step_id", s.step.ID,
				"type", a.Type,
				"status", res.Status,
				"error", res.Error,
			)
			continue
		}

		a.MarkPerformed(s.now())
		if err := s.repo.Update(ctx, a); err != nil {
			return results, fmt.Errorf("mark action %s performed: %w", a.ID, err)
		}
	}

	return results, nil
}

// discard удаляет невыполнимое действие.
// Время шага при этом не пересчитывается.
func (s *ActionSet) discard(ctx context.Context, a *domain.Action) error {
	if err := s.repo.Delete(ctx, a.ID); err != nil {
		return fmt.Errorf("discard action %s: %w", a.ID, err)
	}
	s.actions = slices.DeleteFunc(s.actions, func(x *domain.Action) bool { return x.ID == a.ID })
	telemetry.ActionsDiscarded.WithLabelValues(a.Type).Inc()

	s.logger.Info("non-performable action discarded",
		"action_id", a.ID,
		"step_id", s.step.ID,
		"type", a.Type,
	)
	return nil
}
