package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/engine"
)

// CaseReader читает дела.
type CaseReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Case, error)
	GetByReference(ctx context.Context, reference string) (*domain.Case, error)
}

// StepReader читает шаги.
type StepReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CaseStep, error)
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]domain.CaseStep, error)
}

// StepEngine — операции движка, доступные через API.
type StepEngine interface {
	Perform(ctx context.Context, stepID uuid.UUID) (*engine.Report, error)
	PerformIfDue(ctx context.Context, stepID uuid.UUID) (*engine.Report, error)
	ScheduleNext(ctx context.Context, stepID uuid.UUID) ([]uuid.UUID, error)
	StartWorkflow(ctx context.Context, caseID uuid.UUID, ref string, at time.Time) (*domain.CaseStep, error)
	CreateAdHocStep(ctx context.Context, caseID uuid.UUID, label string, at time.Time) (*domain.CaseStep, error)
}

// TemplateLister перечисляет шаблоны каталога.
type TemplateLister interface {
	All() []*domain.WorkflowTemplate
}

// Calendar — календарь рабочих дней.
type Calendar interface {
	Adjust(t time.Time) time.Time
	IsBusinessDay(t time.Time) bool
	HolidayName(t time.Time) string
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	cases     CaseReader
	steps     StepReader
	engine    StepEngine
	templates TemplateLister
	calendar  Calendar
	logger    *slog.Logger
	now       func() time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Cases     CaseReader
	Steps     StepReader
	Engine    StepEngine
	Templates TemplateLister
	Calendar  Calendar
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		cases:     cfg.Cases,
		steps:     cfg.Steps,
		engine:    cfg.Engine,
		templates: cfg.Templates,
		calendar:  cfg.Calendar,
		logger:    logger,
		now:       now,
	}
}
