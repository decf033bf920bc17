// Package sweeper по расписанию подбирает tasks, застрявшие в
// submitted или started.
//
// submitted дольше SubmittedAfter — сообщение не было опубликовано или
// потерялось; task отправляется в Worker.ProcessTask.
// started дольше StartedAfter — воркер упал после ack; task
// отправляется в Worker.Resume.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/mzacho/knapsack-service/internal/domain"
	"github.com/mzacho/knapsack-service/internal/telemetry"
	"github.com/mzacho/knapsack-service/internal/worker"
)

// Default configuration values.
const (
	DefaultSchedule       = "@every 30s"
	DefaultSubmittedAfter = time.Minute
	DefaultStartedAfter   = 10 * time.Minute
	defaultBatchSize      = 100
)

// ScheduleOff отключает sweeper. Воркер пропускает только tasks, решаемые
// в его собственном процессе, поэтому при нескольких воркерах sweeper включают
// ровно на одном из них.
const ScheduleOff = "off"

// TaskLister — выборка зависших tasks. Реализуется repo.Store.
type TaskLister interface {
	ListStale(ctx context.Context, status domain.TaskStatus, olderThan time.Time, limit int) ([]domain.Task, error)
}

// Recoverer — повторный запуск tasks. Реализуется worker.Worker.
type Recoverer interface {
	ProcessTask(ctx context.Context, id uuid.UUID) error
	Resume(ctx context.Context, task *domain.Task) error
}

// Sweeper — периодическое восстановление зависших tasks.
type Sweeper struct {
	store          TaskLister
	worker         Recoverer
	schedule       string
	submittedAfter time.Duration
	startedAfter   time.Duration
	batchSize      int
	logger         *slog.Logger
	now            func() time.Time

	cron *cron.Cron
}

// Config — конфигурация Sweeper.
type Config struct {
	Store  TaskLister
	Worker Recoverer

	// Schedule — расписание в формате cron или @every (default: @every 30s).
	// ScheduleOff отключает sweeper.
	Schedule string

	// SubmittedAfter — через сколько submitted task считается зависшим (default: 1m).
	SubmittedAfter time.Duration

	// StartedAfter — через сколько started task считается зависшим (default: 10m).
	StartedAfter time.Duration

	// BatchSize — tasks каждого статуса за один тик (default: 100).
	BatchSize int

	Logger *slog.Logger

	// Now — источник времени (для тестов). По умолчанию time.Now.
	Now func() time.Time
}

// New создаёт новый Sweeper.
func New(cfg Config) *Sweeper {
	s := &Sweeper{
		store:          cfg.Store,
		worker:         cfg.Worker,
		schedule:       cfg.Schedule,
		submittedAfter: cfg.SubmittedAfter,
		startedAfter:   cfg.StartedAfter,
		batchSize:      cfg.BatchSize,
		logger:         cfg.Logger,
		now:            cfg.Now,
	}
	if s.schedule == "" {
		s.schedule = DefaultSchedule
	}
	if s.submittedAfter <= 0 {
		s.submittedAfter = DefaultSubmittedAfter
	}
	if s.startedAfter <= 0 {
		s.startedAfter = DefaultStartedAfter
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start запускает Tick по расписанию. Тик не запускается, пока
// не закончился предыдущий.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.schedule == ScheduleOff {
		s.logger.Info("sweeper disabled")
		return nil
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return err
	}

	logger := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Tick(ctx); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("sweeper started",
		"schedule", s.schedule,
		"submitted_after", s.submittedAfter,
		"started_after", s.startedAfter,
	)
	return nil
}

// Stop останавливает расписание и ждёт текущий тик.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// Tick выполняет один проход.
//
// Ошибки одного task не блокируют обработку остальных.
func (s *Sweeper) Tick(ctx context.Context) error {
	now := s.now()

	submitted, errSubmitted := s.sweep(ctx, domain.TaskStatusSubmitted, now.Add(-s.submittedAfter),
		func(task *domain.Task) error { return s.worker.ProcessTask(ctx, task.ID) })

	started, errStarted := s.sweep(ctx, domain.TaskStatusStarted, now.Add(-s.startedAfter),
		func(task *domain.Task) error { return s.worker.Resume(ctx, task) })

	if submitted > 0 || started > 0 {
		s.logger.Info("sweep completed",
			"submitted_recovered", submitted,
			"started_recovered", started,
		)
	}
	return errors.Join(errSubmitted, errStarted)
}

// sweep обрабатывает зависшие tasks одного статуса и возвращает,
// сколько из них было отправлено воркеру.
func (s *Sweeper) sweep(ctx context.Context, status domain.TaskStatus, olderThan time.Time, recoverTask func(*domain.Task) error) (int, error) {
	tasks, err := s.store.ListStale(ctx, status, olderThan, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale %s tasks: %w", status, err)
	}

	var recovered int
	for i := range tasks {
		task := &tasks[i]

		if err := recoverTask(task); err != nil {
			if errors.Is(err, worker.ErrAlreadyHandled) {
				s.logger.Debug("stale task already handled", "task_id", task.ID, "status", status)
				continue
			}
			if ctx.Err() != nil {
				return recovered, ctx.Err()
			}
			s.logger.Error("failed to recover task", "task_id", task.ID, "status", status, "error", err)
			continue
		}

		recovered++
		telemetry.SweepRecovered.WithLabelValues(status.String()).Inc()
	}
	return recovered, nil
}
