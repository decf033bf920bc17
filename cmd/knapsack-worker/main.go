// Knapsack Worker — решает задачи о рюкзаке.
//
// Worker:
//   - Получает id задач из очереди problem_submitted
//   - Переводит task в started и решает генетическим алгоритмом
//   - Сохраняет решение и переводит task в completed (или failed)
//   - Периодически подбирает зависшие tasks (sweeper)
//
// Несколько воркеров могут читать одну очередь. Sweeper пропускает только
// tasks, решаемые в своём процессе, поэтому на остальных репликах его
// выключают: SWEEP_SCHEDULE=off.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mzacho/knapsack-service/internal/config"
	"github.com/mzacho/knapsack-service/internal/mq"
	"github.com/mzacho/knapsack-service/internal/repo"
	"github.com/mzacho/knapsack-service/internal/solver"
	"github.com/mzacho/knapsack-service/internal/sweeper"
	"github.com/mzacho/knapsack-service/internal/telemetry"
	"github.com/mzacho/knapsack-service/internal/worker"
)

func main() {
	logger := telemetry.SetupLogger("knapsack-worker")
	logger.Info("starting knapsack-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing("knapsack-worker")
	if err != nil {
		logger.Error("failed to setup tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	// DB pool
	pool, err := repo.NewPool(ctx, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	if err := repo.Migrate(ctx, pool, logger); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	// RabbitMQ
	mqURL := config.String(mq.DefaultURL(), "RABBITMQ_URL", "AMQP_ADDRESS")
	mqConn, err := mq.NewConnection(ctx, mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	solverCfg := solver.DefaultConfig()
	solverCfg.PopulationSize = config.Int("SOLVER_POPULATION", solverCfg.PopulationSize)
	solverCfg.Generations = config.Int("SOLVER_GENERATIONS", solverCfg.Generations)

	store := repo.NewStore(pool)

	w := worker.New(worker.Config{
		Store:               store,
		Solver:              solver.New(solverCfg),
		Conn:                mqConn,
		MaxConcurrentSolves: config.Int("WORKER_MAX_SOLVES", runtime.NumCPU()),
		Prefetch:            config.Int("WORKER_PREFETCH", 16),
		SolveAttempts:       config.Int("WORKER_SOLVE_ATTEMPTS", 3),
		DrainTimeout:        config.Duration("WORKER_DRAIN_TIMEOUT", 30*time.Second),
		Logger:              logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	sw := sweeper.New(sweeper.Config{
		Store:          store,
		Worker:         w,
		Schedule:       config.String(sweeper.DefaultSchedule, "SWEEP_SCHEDULE"),
		SubmittedAfter: config.Duration("SWEEP_SUBMITTED_AFTER", sweeper.DefaultSubmittedAfter),
		StartedAfter:   config.Duration("SWEEP_STARTED_AFTER", sweeper.DefaultStartedAfter),
		Logger:         logger,
	})
	if err := sw.Start(ctx); err != nil {
		logger.Error("failed to start sweeper", "error", err)
		w.Stop()
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		if w.IsStopped() || !mqConn.IsConnected() {
			http.Error(rw, "unavailable", http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := config.Port("WORKER_PORT", 8082)
	server := &http.Server{
		Addr:              port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", "in_flight", w.InFlightCount())

	// Сначала sweeper, чтобы он не запускал новые решения во время drain.
	sw.Stop()
	w.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	logger.Info("knapsack-worker stopped")
}
