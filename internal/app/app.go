// Package app собирает зависимости сервисов Collector: пул БД,
// брокер, репозитории, каталог этапов, исполнители действий и движок.
//
// Используется cmd/collector-scheduler, cmd/collector-worker и CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Collector/internal/actions"
	"github.com/shaiso/Collector/internal/calendar"
	"github.com/shaiso/Collector/internal/catalog"
	"github.com/shaiso/Collector/internal/config"
	"github.com/shaiso/Collector/internal/engine"
	"github.com/shaiso/Collector/internal/mq"
	"github.com/shaiso/Collector/internal/repo"
)

// Options — что поднимать помимо БД.
type Options struct {
	// Broker — подключиться к RabbitMQ и объявить топологию.
	Broker bool

	// RequireBroker — без брокера Open возвращает ошибку.
	// Иначе сервис продолжает работу без очередей.
	RequireBroker bool

	// Name — имя сервиса для application_name соединений БД.
	Name string
}

// Services — собранные зависимости.
type Services struct {
	Config *config.Config

	Pool    *pgxpool.Pool
	Store   *repo.Store
	Cases   *repo.CaseRepo
	Steps   *repo.StepRepo
	Actions *repo.ActionRepo

	// Conn и Publisher равны nil, если брокер не поднят.
	Conn      *mq.Connection
	Publisher *mq.Publisher

	Catalog  *catalog.Catalog
	Calendar *calendar.Calendar
	Registry *actions.Registry
	Engine   *engine.Engine

	logger *slog.Logger
}

// Open подключается к БД (и брокеру), загружает каталог и собирает Engine.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Services, error) {
	cat, err := LoadCatalog(cfg.TemplatesFile)
	if err != nil {
		return nil, err
	}

	businessDays, err := cfg.Calendar()
	if err != nil {
		return nil, err
	}

	pool, err := repo.NewPool(ctx, repo.PoolConfig{
		DSN:             cfg.DBURL,
		MaxConns:        cfg.DBMaxConns,
		ApplicationName: opts.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	logger.Info("database connected")

	s := &Services{
		Config:   cfg,
		Pool:     pool,
		Store:    repo.NewStore(pool),
		Cases:    repo.NewCaseRepo(pool),
		Steps:    repo.NewStepRepo(pool),
		Actions:  repo.NewActionRepo(pool),
		Catalog:  cat,
		Calendar: businessDays,
		logger:   logger,
	}

	if opts.Broker || opts.RequireBroker {
		if err := s.openBroker(cfg); err != nil {
			if opts.RequireBroker {
				s.Close()
				return nil, err
			}
			logger.Warn("RabbitMQ not available, running without queues", "error", err)
		}
	}

	// Интерфейсы получают Publisher только если он есть:
	// nil-указатель в интерфейсе не равен nil.
	regCfg := actions.Config{Timeout: cfg.ActionTimeout, Logger: logger}
	var notifier engine.Notifier
	if s.Publisher != nil {
		regCfg.Publisher = s.Publisher
		notifier = actions.NewCaseNotifier(s.Publisher)
	}
	s.Registry = actions.NewRegistry(regCfg)

	s.Engine = engine.New(engine.Config{
		Steps:      s.Steps,
		Actions:    s.Actions,
		Cases:      s.Cases,
		Templates:  cat,
		Performers: s.Registry,
		Notifier:   notifier,
		Tx:         s.Store,
		Calendar:   s.Calendar,
		Logger:     logger,
	})

	return s, nil
}

func (s *Services) openBroker(cfg *config.Config) error {
	conn, err := mq.Dial(mq.Config{URL: cfg.RabbitMQURL, Confirm: true, Logger: s.logger})
	if err != nil {
		return fmt.Errorf("rabbitmq connect: %w", err)
	}
	if err := mq.Declare(conn); err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq topology: %w", err)
	}
	s.Conn = conn
	s.Publisher = mq.NewPublisher(conn, s.logger)
	s.logger.Info("RabbitMQ connected")
	return nil
}

// Close закрывает брокер и пул.
func (s *Services) Close() {
	if s.Conn != nil {
		if err := s.Conn.Close(); err != nil {
			s.logger.Warn("rabbitmq close", "error", err)
		}
	}
	s.Pool.Close()
}

// LoadCatalog загружает каталог этапов из файла или встроенный (path == "").
func LoadCatalog(path string) (*catalog.Catalog, error) {
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}
