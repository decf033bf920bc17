package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/semaphore"

	"github.com/mzacho/knapsack-service/internal/domain"
	"github.com/mzacho/knapsack-service/internal/mq"
	"github.com/mzacho/knapsack-service/internal/retry"
	"github.com/mzacho/knapsack-service/internal/solver"
)

var tracer = otel.Tracer("github.com/mzacho/knapsack-service/internal/worker")

// Default configuration values.
const (
	defaultPrefetch      = 16
	defaultSolveAttempts = 3
	defaultDrainTimeout  = 30 * time.Second
)

// Store — операции хранилища, которые нужны воркеру. Реализуется repo.Store.
type Store interface {
	MarkStarted(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Task, error)
	CompleteTask(ctx context.Context, solution *domain.Solution, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, now time.Time, reason string) error
}

// Solver — решатель задачи. Реализуется solver.Solver.
type Solver interface {
	Solve(ctx context.Context, p domain.Problem) (*solver.Result, error)
}

// Worker решает tasks из очереди.
type Worker struct {
	store  Store
	solver Solver
	conn   *mq.Connection

	consumer *mq.Consumer
	prefetch int

	// Пул решений
	sem           *semaphore.Weighted
	maxSolves     int
	solveAttempts uint
	solvePolicy   retry.Policy
	writePolicy   retry.Policy
	drainTimeout  time.Duration

	inFlightMu sync.Mutex
	inFlight   map[uuid.UUID]struct{}

	// solveCtx отменяется, только если решения не успели завершиться
	// за drainTimeout после Stop.
	solveCtx     context.Context
	cancelSolves context.CancelFunc
	solves       sync.WaitGroup

	// Lifecycle
	logger     *slog.Logger
	now        func() time.Time
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Store  Store
	Solver Solver // если nil — solver.New(solver.DefaultConfig())

	// Conn — соединение с RabbitMQ. Нужен только для Start.
	Conn *mq.Connection

	// MaxConcurrentSolves — размер пула решений (default: runtime.NumCPU()).
	MaxConcurrentSolves int

	// Prefetch — неподтверждённых сообщений у consumer (default: 16).
	Prefetch int

	// SolveAttempts — попыток решения до перехода в failed (default: 3).
	SolveAttempts int

	// DrainTimeout — сколько Stop ждёт решений до их отмены (default: 30s).
	DrainTimeout time.Duration

	Logger *slog.Logger

	// Now — источник времени (для тестов). По умолчанию time.Now.
	Now func() time.Time
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	maxSolves := cfg.MaxConcurrentSolves
	if maxSolves <= 0 {
		maxSolves = runtime.NumCPU()
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	attempts := cfg.SolveAttempts
	if attempts <= 0 {
		attempts = defaultSolveAttempts
	}

	drain := cfg.DrainTimeout
	if drain <= 0 {
		drain = defaultDrainTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := cfg.Solver
	if s == nil {
		s = solver.New(solver.DefaultConfig())
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	solveCtx, cancelSolves := context.WithCancel(context.Background())

	return &Worker{
		store:         cfg.Store,
		solver:        s,
		conn:          cfg.Conn,
		prefetch:      prefetch,
		sem:           semaphore.NewWeighted(int64(maxSolves)),
		maxSolves:     maxSolves,
		solveAttempts: uint(attempts),
		solvePolicy: retry.Policy{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
		writePolicy:  retry.DefaultPolicy(),
		drainTimeout: drain,
		inFlight:     make(map[uuid.UUID]struct{}),
		solveCtx:     solveCtx,
		cancelSolves: cancelSolves,
		logger:       logger,
		now:          now,
	}
}

// Start запускает consumer очереди problem_submitted. Не блокируется.
func (w *Worker) Start(ctx context.Context) error {
	if w.conn == nil {
		return errors.New("worker: no mq connection configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"max_concurrent_solves", w.maxSolves,
		"prefetch", w.prefetch,
		"solve_attempts", w.solveAttempts,
	)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    mq.QueueProblemSubmitted,
		Handler:  w.handleTaskSubmitted,
		Prefetch: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("task consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает потребление и ждёт решений, которые уже идут.
//
// Решения, не успевшие за DrainTimeout, отменяются; их tasks остаются
// в started и будут подобраны sweeper'ом.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	if w.stopped {
		w.stoppedMu.Unlock()
		return
	}
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}
	w.wg.Wait()

	done := make(chan struct{})
	go func() {
		w.solves.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.drainTimeout):
		w.logger.Warn("solves did not finish in time, cancelling", "in_flight", w.InFlightCount())
		w.cancelSolves()
		<-done
	}
	w.cancelSolves()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// InFlightCount возвращает число tasks, которые решаются сейчас.
func (w *Worker) InFlightCount() int {
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()
	return len(w.inFlight)
}

// track помечает task как решаемый. false — он уже решается.
func (w *Worker) track(id uuid.UUID) bool {
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()

	if _, ok := w.inFlight[id]; ok {
		return false
	}
	w.inFlight[id] = struct{}{}
	return true
}

func (w *Worker) untrack(id uuid.UUID) {
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()
	delete(w.inFlight, id)
}

// dispatch отправляет task в пул решений.
//
// Блокируется, пока в пуле нет места или не отменён ctx.
// Само решение идёт в отдельной горутине.
func (w *Worker) dispatch(ctx context.Context, task *domain.Task) error {
	if !w.track(task.ID) {
		return fmt.Errorf("%w: %s is being solved", ErrAlreadyHandled, task.ID)
	}

	if err := w.sem.Acquire(ctx, 1); err != nil {
		w.untrack(task.ID)
		return fmt.Errorf("wait for solve slot: %w", err)
	}

	// Add под stoppedMu: после Stop новые решения не запускаются.
	w.stoppedMu.RLock()
	if w.stopped {
		w.stoppedMu.RUnlock()
		w.sem.Release(1)
		w.untrack(task.ID)
		return ErrWorkerStopped
	}
	w.solves.Add(1)
	w.stoppedMu.RUnlock()

	go func() {
		defer w.solves.Done()
		defer w.sem.Release(1)
		defer w.untrack(task.ID)

		w.run(task)
	}()
	return nil
}
