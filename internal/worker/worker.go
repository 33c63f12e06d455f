package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/engine"
	"github.com/shaiso/Collector/internal/mq"
)

// Default configuration values.
const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 50
	defaultPrefetch     = 5
)

// StepPerformer выполняет шаг, если он всё ещё due.
type StepPerformer interface {
	PerformIfDue(ctx context.Context, stepID uuid.UUID) (*engine.Report, error)
}

// StepLister выбирает шаги, время которых наступило (для polling),
// страницами по (scheduled_at, id).
type StepLister interface {
	ListDueAfter(ctx context.Context, now time.Time, after *domain.CaseStep, limit int) ([]domain.CaseStep, error)
}

// Worker выполняет шаги взыскания.
//
// Worker — stateless компонент, который:
//   - получает шаги из очереди steps.due (event-driven)
//   - без брокера сам опрашивает БД (polling fallback)
//   - выполняет каждый шаг как отдельную единицу работы через PerformIfDue
//
// Workers масштабируются горизонтально: блокировка строки шага
// не даёт двум экземплярам выполнить один шаг одновременно.
type Worker struct {
	performer StepPerformer
	steps     StepLister
	conn      *mq.Connection

	consumer *mq.Consumer

	pollInterval time.Duration
	batchSize    int
	prefetch     int
	now          func() time.Time

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	Performer StepPerformer
	Steps     StepLister

	// Conn — соединение с брокером. nil — режим polling.
	Conn *mq.Connection

	PollInterval time.Duration // интервал polling (default: 30s)
	BatchSize    int           // шагов за один poll (default: 50)
	Prefetch     int           // неподтверждённых сообщений (default: 5)

	Logger *slog.Logger
	Now    func() time.Time
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Worker{
		performer:    cfg.Performer,
		steps:        cfg.Steps,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		prefetch:     prefetch,
		now:          now,
		logger:       logger,
	}
}

// Start запускает Worker: consumer steps.due или, без брокера, polling.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	if w.conn == nil {
		w.logger.Warn("no message broker, running in polling mode", "poll_interval", w.pollInterval)
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.pollLoop(ctx)
		}()
		return nil
	}

	w.consumer = mq.NewConsumer(w.conn, mq.ConsumerConfig{
		Queue:    mq.QueueStepsDue,
		Handler:  w.handleStepDue,
		Prefetch: w.prefetch,
		Logger:   w.logger,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("step consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started", "queue", mq.QueueStepsDue, "prefetch", w.prefetch)
	return nil
}

// Stop останавливает Worker и ждёт завершения текущей работы.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")
	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// pollLoop — цикл polling.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет шаги, время которых наступило.
// Читает все страницы, чтобы неудачные шаги в начале очереди
// не загораживали остальные. Возвращает число успешно обработанных шагов.
func (w *Worker) poll(ctx context.Context) int {
	now := w.now()
	seen := make(map[uuid.UUID]struct{})

	var processed int
	var after *domain.CaseStep
	for {
		page, err := w.steps.ListDueAfter(ctx, now, after, w.batchSize)
		if err != nil {
			w.logger.Error("failed to list due steps", "error", err)
			return processed
		}
		if len(page) > 0 {
			w.logger.Debug("poll found due steps", "count", len(page))
		}

		for i := range page {
			if ctx.Err() != nil {
				return processed
			}
			if _, ok := seen[page[i].ID]; ok {
				continue
			}
			seen[page[i].ID] = struct{}{}

			if err := w.processStep(ctx, page[i].ID); err != nil {
				w.logger.Error("failed to process step from poll",
					"step_id", page[i].ID,
					"error", err,
				)
				continue
			}
			processed++
		}

		if len(page) < w.batchSize {
			return processed
		}
		after = &page[len(page)-1]
	}
}
