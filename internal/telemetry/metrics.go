package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики регистрируются в prometheus.DefaultRegisterer
// и отдаются через promhttp.Handler() на /metrics.
var (
	// HTTPRequestsTotal — обработанные HTTP-запросы API.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knapsack_api_http_requests_total",
		Help: "Total HTTP requests handled by knapsack-api",
	}, []string{"method", "status"})

	// HTTPRequestDuration — длительность HTTP-запросов.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "knapsack_api_http_request_duration_seconds",
		Help:    "Duration of HTTP requests handled by knapsack-api",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// TasksSubmitted — принятые tasks.
	TasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knapsack_tasks_submitted_total",
		Help: "Tasks persisted by the submission service",
	})

	// PublishFailures — tasks, сохранённые в БД, но не опубликованные в очередь.
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knapsack_publish_failures_total",
		Help: "Tasks persisted but not published to the work channel",
	})

	// DeliveriesTotal — сообщения из очереди по исходу обработки.
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knapsack_worker_deliveries_total",
		Help: "Deliveries consumed by the worker, by outcome",
	}, []string{"outcome"})

	// SolvesInFlight — решатели, выполняющиеся прямо сейчас.
	SolvesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "knapsack_worker_solves_in_flight",
		Help: "Solver runs currently executing",
	})

	// SolveDuration — длительность одного запуска решателя.
	SolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "knapsack_worker_solve_duration_seconds",
		Help:    "Duration of a single solver run",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	// TasksFinished — tasks, переведённые в финальный статус.
	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knapsack_worker_tasks_finished_total",
		Help: "Tasks moved to a terminal status by the worker",
	}, []string{"status"})

	// RetriesTotal — повторные попытки на внешних границах.
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knapsack_retries_total",
		Help: "Retried operations against external systems",
	}, []string{"operation"})

	// SweepRecovered — tasks, подобранные sweeper'ом.
	SweepRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knapsack_sweeper_recovered_total",
		Help: "Stale tasks re-driven by the recovery sweeper",
	}, []string{"status"})
)

// Исходы обработки сообщения для DeliveriesTotal.
const (
	OutcomeStarted   = "started"
	OutcomeDuplicate = "duplicate"
	OutcomeMalformed = "malformed"
	OutcomeOrphan    = "orphan"
	OutcomeRequeued  = "requeued"
)
