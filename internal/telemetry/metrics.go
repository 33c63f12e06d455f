package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка шагов. Регистрируются в prometheus.DefaultRegisterer
// и отдаются через promhttp.Handler() на /metrics.
var (
	// StepsPerformed — шаги, перешедшие в performed.
	StepsPerformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_steps_performed_total",
		Help: "Steps transitioned to performed.",
	})

	// StepsDeferred — шаги, отложенные на день из-за состояния дела.
	StepsDeferred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_steps_deferred_total",
		Help: "Steps deferred by one day because the case was not performable.",
	})

	// StepsFinalized — срабатывания финального этапа без передачи приставу.
	StepsFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_steps_finalized_total",
		Help: "Final step invocations that closed the case without bailiff handover.",
	})

	// StepsFailed — шаги, оставшиеся невыполненными из-за действий.
	StepsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_steps_failed_total",
		Help: "Step invocations left unperformed because an action did not succeed.",
	})

	// StepsScheduled — созданные шаги-преемники.
	StepsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_steps_scheduled_total",
		Help: "Successor steps created.",
	})

	// ActionsExecuted — выполненные действия по типу и результату.
	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_actions_executed_total",
		Help: "Actions executed, by type and result.",
	}, []string{"type", "result"})

	// ActionsDiscarded — удалённые невыполнимые действия.
	ActionsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_actions_discarded_total",
		Help: "Non-performable actions destroyed, by type.",
	}, []string{"type"})

	// CaseFinishedNotifications — отправленные уведомления о завершении дела.
	CaseFinishedNotifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_case_finished_notifications_total",
		Help: "Case finished notifications sent to creditors.",
	})

	// BillingCents — начисленная стоимость шагов в центах.
	BillingCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_billing_cents_total",
		Help: "Step prices accumulated on cases, in cents.",
	})

	// DispatchedSteps — шаги, переданные на выполнение, по способу.
	DispatchedSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_dispatched_steps_total",
		Help: "Due steps dispatched, by mode (queued or inline).",
	}, []string{"mode"})

	// DispatchDuration — длительность прохода планировщика.
	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collector_dispatch_pass_seconds",
		Help:    "Duration of one due-step dispatch pass.",
		Buckets: prometheus.DefBuckets,
	})

	// HTTPRequests — запросы API по шаблону маршрута и статусу.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_http_requests_total",
		Help: "API requests, by route pattern and status code.",
	}, []string{"route", "status"})

	// HTTPDuration — длительность обработки запроса API.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collector_http_request_seconds",
		Help:    "API request duration, by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)
