package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Locker — выбор лидера. Проход выполняет только лидер.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// RunnerConfig — конфигурация Runner.
type RunnerConfig struct {
	Scheduler *Scheduler
	Schedule  *Schedule

	// Lock — выбор лидера (опционально; без него проход выполняется всегда).
	Lock Locker

	Logger *slog.Logger
}

// Runner запускает проходы диспетчера по расписанию cron.
type Runner struct {
	scheduler *Scheduler
	schedule  *Schedule
	lock      Locker
	logger    *slog.Logger
}

// NewRunner создаёт новый Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		scheduler: cfg.Scheduler,
		schedule:  cfg.Schedule,
		lock:      cfg.Lock,
		logger:    logger,
	}
}

// Run ждёт моментов расписания и выполняет проходы до отмены ctx.
// При остановке лидерство освобождается.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("dispatcher started", "schedule", r.schedule.String())

	defer func() {
		if r.lock == nil {
			return
		}
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.lock.Unlock(unlockCtx); err != nil {
			r.logger.Warn("failed to release leadership", "error", err)
		}
	}()

	for {
		next := r.schedule.Next(r.scheduler.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("dispatcher stopped")
			return ctx.Err()
		case <-timer.C:
			r.fire(ctx)
		}
	}
}

// fire выполняет один проход, если этот экземпляр — лидер.
// Возвращает true, если проход выполнялся.
func (r *Runner) fire(ctx context.Context) bool {
	if r.lock != nil {
		leader, err := r.lock.TryLock(ctx)
		if err != nil {
			r.logger.Error("leader election failed", "error", err)
			return false
		}
		if !leader {
			r.logger.Debug("not a leader, skipping pass")
			return false
		}
	}

	if _, err := r.scheduler.Tick(ctx); err != nil {
		r.logger.Error("dispatch pass failed", "error", err)
	}
	return true
}
