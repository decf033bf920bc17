// Knapsack API — приём задач о рюкзаке и выдача результатов.
//
// API:
//   - POST /knapsack: сохраняет task в PostgreSQL и публикует его id в RabbitMQ
//   - GET /knapsack/{id}: возвращает статус и решение
//
// Решение выполняет knapsack-worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mzacho/knapsack-service/internal/api"
	"github.com/mzacho/knapsack-service/internal/config"
	"github.com/mzacho/knapsack-service/internal/mq"
	"github.com/mzacho/knapsack-service/internal/repo"
	"github.com/mzacho/knapsack-service/internal/service"
	"github.com/mzacho/knapsack-service/internal/telemetry"
)

var startTime = time.Now()

func main() {
	logger := telemetry.SetupLogger("knapsack-api")
	logger.Info("starting knapsack-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing("knapsack-api")
	if err != nil {
		logger.Error("failed to setup tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

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

	if err := mq.SetupTopology(mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Info("RabbitMQ connected", "topology", mq.TopologyInfo())

	svc := service.New(service.Config{
		Store:     repo.NewStore(pool),
		Publisher: mq.NewPublisher(mqConn, logger),
		Logger:    logger,
	})

	handler := api.NewHandler(api.Config{
		Tasks:  svc,
		Logger: logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			http.Error(w, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	addr := config.Port("API_PORT", 6543)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
