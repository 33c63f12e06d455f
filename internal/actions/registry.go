package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/mq"
)

// Типы действий.
const (
	TypeDebtorNotice    = "debtor_notice"
	TypeFeePosting      = "fee_posting"
	TypeHandoverBailiff = "handover_bailiff"
)

const defaultTimeout = 10 * time.Second

// Performer — исполнитель действий одного типа.
type Performer interface {
	// Performable сообщает, имеет ли действие смысл для дела.
	// Невыполнимое действие удаляется без попытки выполнения.
	Performable(c *domain.Case, a *domain.Action) bool

	// Perform выполняет действие. nil — успех.
	Perform(ctx context.Context, c *domain.Case, a *domain.Action) error
}

// Publisher — публикация команд внешним системам.
// Реализуется *mq.Publisher.
type Publisher interface {
	PublishDebtorNotice(ctx context.Context, payload mq.DebtorNoticePayload) error
	PublishFeePosted(ctx context.Context, payload mq.FeePostedPayload) error
	PublishBailiffHandover(ctx context.Context, payload mq.BailiffHandoverPayload) error
	PublishCaseFinished(ctx context.Context, payload mq.CaseFinishedPayload) error
}

// Config — конфигурация Registry.
type Config struct {
	Publisher Publisher

	// Timeout — предел на одно действие (default: 10s).
	Timeout time.Duration

	Logger *slog.Logger
}

// Registry — реестр исполнителей по типу действия.
type Registry struct {
	performers map[string]Performer
	timeout    time.Duration
	logger     *slog.Logger
}

// NewRegistry создаёт реестр с исполнителями по умолчанию:
// debtor_notice, fee_posting, handover_bailiff.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	r := &Registry{
		performers: make(map[string]Performer),
		timeout:    timeout,
		logger:     logger,
	}
	if cfg.Publisher != nil {
		r.Register(TypeDebtorNotice, &DebtorNotice{pub: cfg.Publisher})
		r.Register(TypeFeePosting, &FeePosting{pub: cfg.Publisher})
		r.Register(TypeHandoverBailiff, &BailiffHandover{pub: cfg.Publisher})
	}
	return r
}

// Register добавляет исполнителя для типа действия.
func (r *Registry) Register(actionType string, p Performer) {
	r.performers[actionType] = p
}

// Get возвращает исполнителя для типа действия.
func (r *Registry) Get(actionType string) (Performer, error) {
	p, ok := r.performers[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActionType, actionType)
	}
	return p, nil
}

// Types возвращает зарегистрированные типы по алфавиту.
func (r *Registry) Types() []string {
	return slices.Sorted(maps.Keys(r.performers))
}

// Performable решает, выполнимо ли действие.
//
// Действие неизвестного типа считается выполнимым: оно не удаляется,
// а завершается ошибкой в Perform и остаётся видимым оператору.
func (r *Registry) Performable(_ context.Context, c *domain.Case, a *domain.Action) bool {
	p, err := r.Get(a.Type)
	if err != nil {
		return true
	}
	return p.Performable(c, a)
}

// Perform выполняет действие с таймаутом и классифицирует исход.
func (r *Registry) Perform(ctx context.Context, c *domain.Case, a *domain.Action) domain.ActionResult {
	res := domain.ActionResult{ActionID: a.ID, Type: a.Type}

	p, err := r.Get(a.Type)
	if err != nil {
		res.Status = domain.ResultFailed
		res.Error = err.Error()
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	err = p.Perform(ctx, c, a)
	res.Status = classify(err)
	if err != nil {
		res.Error = err.Error()
	}

	r.logger.Debug("action performed",
		"action_id", a.ID,
		"case_id", c.ID,
		"type", a.Type,
		"status", res.Status,
		"duration", time.Since(started),
	)
	return res
}

// classify переводит ошибку исполнителя в статус результата.
// Таймаут после начала отправки не говорит, дошла ли команда.
func classify(err error) domain.ResultStatus {
	switch {
	case err == nil:
		return domain.ResultSucceeded
	case errors.Is(err, ErrIndeterminate), errors.Is(err, context.DeadlineExceeded):
		return domain.ResultIndeterminate
	default:
		return domain.ResultFailed
	}
}
