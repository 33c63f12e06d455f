package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/app"
	"github.com/shaiso/Collector/internal/calendar"
	"github.com/shaiso/Collector/internal/config"
	"github.com/shaiso/Collector/internal/domain"
)

// Runtime лениво загружает конфигурацию и поднимает сервисы
// только для команд, которым нужна БД.
type Runtime struct {
	logger   *slog.Logger
	cfg      *config.Config
	services *app.Services
	loadCfg  func() (*config.Config, error)
}

// NewRuntime создаёт Runtime. Конфигурация читается из окружения и .env.
func NewRuntime(logger *slog.Logger) *Runtime {
	return &Runtime{logger: logger, loadCfg: config.Load}
}

// SetLogger заменяет логгер (до первого вызова Services).
func (r *Runtime) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// Config возвращает конфигурацию, загружая её при первом вызове.
func (r *Runtime) Config() (*config.Config, error) {
	if r.cfg != nil {
		return r.cfg, nil
	}
	cfg, err := r.loadCfg()
	if err != nil {
		return nil, err
	}
	r.cfg = cfg
	return cfg, nil
}

// Services подключается к БД и брокеру при первом вызове.
// Без брокера команды работают, но действия шагов не выполняются.
func (r *Runtime) Services(ctx context.Context) (*app.Services, error) {
	if r.services != nil {
		return r.services, nil
	}
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	s, err := app.Open(ctx, cfg, r.logger, app.Options{Broker: true, Name: "collector-cli"})
	if err != nil {
		return nil, err
	}
	r.services = s
	return s, nil
}

// Close освобождает поднятые сервисы.
func (r *Runtime) Close() {
	if r.services != nil {
		r.services.Close()
		r.services = nil
	}
}

// location — часовой пояс для разбора дат без смещения.
func (r *Runtime) location() *time.Location {
	cfg, err := r.Config()
	if err != nil {
		return time.UTC
	}
	loc, err := cfg.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}

// calendar — календарь рабочих дней с нерабочими днями из конфигурации.
// Без конфигурации используются только национальные праздники.
func (r *Runtime) calendar() *calendar.Calendar {
	cfg, err := r.Config()
	if err != nil {
		return calendar.New()
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return calendar.New()
	}
	return cal
}

// resolveCase находит дело по UUID или номеру.
func resolveCase(ctx context.Context, s *app.Services, ref string) (*domain.Case, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.Cases.GetByID(ctx, id)
	}
	return s.Cases.GetByReference(ctx, ref)
}

// parseTime разбирает "now", RFC3339 или дату YYYY-MM-DD[ HH:MM] в поясе loc.
func parseTime(s string, loc *time.Location, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "now") {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, expected RFC3339 or YYYY-MM-DD[ HH:MM]", s)
}

func parseID(kind, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s ID %q: %w", kind, s, err)
	}
	return id, nil
}
