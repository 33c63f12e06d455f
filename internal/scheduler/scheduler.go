package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/engine"
	"github.com/shaiso/Collector/internal/mq"
	"github.com/shaiso/Collector/internal/telemetry"
)

// Способ передачи шага на выполнение.
const (
	ModeQueued = "queued"
	ModeInline = "inline"
)

// StepLister выбирает шаги, время которых наступило, страницами
// по (scheduled_at, id). Пустой after — первая страница.
type StepLister interface {
	ListDueAfter(ctx context.Context, now time.Time, after *domain.CaseStep, limit int) ([]domain.CaseStep, error)
}

// StepPublisher публикует step.due для worker'ов.
type StepPublisher interface {
	PublishStepDue(ctx context.Context, payload mq.StepDuePayload) error
}

// StepPerformer выполняет шаг, если он всё ещё due.
type StepPerformer interface {
	PerformIfDue(ctx context.Context, stepID uuid.UUID) (*engine.Report, error)
}

// Scheduler — диспетчер шагов, время которых наступило.
type Scheduler struct {
	steps     StepLister
	publisher StepPublisher
	performer StepPerformer
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Steps StepLister

	// Publisher — очередь steps.due (опционально).
	Publisher StepPublisher

	// Performer — выполнение на месте: без Publisher или при ошибке публикации.
	Performer StepPerformer

	Logger    *slog.Logger
	BatchSize int // шагов за один проход (default: 100)

	Now func() time.Time
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		steps:     cfg.Steps,
		publisher: cfg.Publisher,
		performer: cfg.Performer,
		logger:    logger,
		batchSize: batchSize,
		now:       now,
	}
}

// PassResult — итог одного прохода.
type PassResult struct {
	Due    int `json:"due"`
	Queued int `json:"queued"`
	Inline int `json:"inline"`
	Failed int `json:"failed"`
}

// Tick выполняет один проход диспетчера.
//
// 1. Выбирает невыполненные шаги с scheduled_at <= now, страница за страницей
// 2. Каждый шаг публикует в steps.due
// 3. Если публикация невозможна — выполняет шаг на месте
//
// Проход читает все страницы, поэтому шаги, которые раз за разом
// не выполняются, не загораживают остальные. Шаг, перенесённый
// во время прохода на время <= now, второй раз не передаётся.
//
// Ошибка одного шага не прерывает проход. Повторная передача шага
// безопасна: worker вызывает PerformIfDue, который под блокировкой
// пропускает уже выполненные и перенесённые шаги.
func (s *Scheduler) Tick(ctx context.Context) (*PassResult, error) {
	started := time.Now()
	defer func() { telemetry.DispatchDuration.Observe(time.Since(started).Seconds()) }()

	now := s.now()
	res := &PassResult{}
	seen := make(map[uuid.UUID]struct{})

	var after *domain.CaseStep
	for {
		page, err := s.steps.ListDueAfter(ctx, now, after, s.batchSize)
		if err != nil {
			return res, fmt.Errorf("list due steps: %w", err)
		}

		for i := range page {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if _, ok := seen[page[i].ID]; ok {
				continue
			}
			seen[page[i].ID] = struct{}{}
			res.Due++
			s.dispatchOne(ctx, &page[i], res)
		}

		if len(page) < s.batchSize {
			break
		}
		after = &page[len(page)-1]
	}

	if res.Due == 0 {
		return res, nil
	}

	s.logger.Info("dispatch pass completed",
		"due", res.Due,
		"queued", res.Queued,
		"inline", res.Inline,
		"failed", res.Failed,
	)
	return res, nil
}

// dispatchOne передаёт шаг и учитывает итог в res.
func (s *Scheduler) dispatchOne(ctx context.Context, step *domain.CaseStep, res *PassResult) {
	mode, err := s.dispatch(ctx, step)
	if err != nil {
		res.Failed++
		s.logger.Error("failed to dispatch step",
			"step_id", step.ID,
			"case_id", step.CaseID,
			"error", err,
		)
		return
	}

	telemetry.DispatchedSteps.WithLabelValues(mode).Inc()
	switch mode {
	case ModeQueued:
		res.Queued++
	case ModeInline:
		res.Inline++
	}
}

// dispatch передаёт один шаг на выполнение.
func (s *Scheduler) dispatch(ctx context.Context, step *domain.CaseStep) (string, error) {
	if s.publisher != nil {
		err := s.publisher.PublishStepDue(ctx, mq.StepDuePayload{
			StepID:      step.ID,
			CaseID:      step.CaseID,
			ScheduledAt: step.ScheduledAt,
		})
		if err == nil {
			return ModeQueued, nil
		}
		if s.performer == nil {
			return "", fmt.Errorf("publish step.due: %w", err)
		}
		s.logger.Warn("failed to publish step.due, performing inline",
			"step_id", step.ID,
			"error", err,
		)
	}

	if s.performer == nil {
		return "", fmt.Errorf("step %s: no publisher and no performer", step.ID)
	}

	report, err := s.performer.PerformIfDue(ctx, step.ID)
	if err != nil {
		return "", fmt.Errorf("perform step: %w", err)
	}

	s.logger.Debug("step performed inline",
		"step_id", step.ID,
		"outcome", report.Outcome,
	)
	return ModeInline, nil
}
