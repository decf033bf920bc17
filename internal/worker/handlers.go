package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mzacho/knapsack-service/internal/domain"
	"github.com/mzacho/knapsack-service/internal/mq"
	"github.com/mzacho/knapsack-service/internal/repo"
	"github.com/mzacho/knapsack-service/internal/retry"
	"github.com/mzacho/knapsack-service/internal/solver"
	"github.com/mzacho/knapsack-service/internal/telemetry"
)

// handleTaskSubmitted обрабатывает сообщение из очереди problem_submitted.
func (w *Worker) handleTaskSubmitted(ctx context.Context, d *mq.Delivery) error {
	id, err := mq.ParseTaskID(d.Raw.Body)
	if err != nil {
		telemetry.DeliveriesTotal.WithLabelValues(telemetry.OutcomeMalformed).Inc()
		return err
	}

	err = w.process(ctx, id, d.Ack)
	switch {
	case err == nil:
		telemetry.DeliveriesTotal.WithLabelValues(telemetry.OutcomeStarted).Inc()
		return nil

	case errors.Is(err, ErrAlreadyHandled):
		// Повторная доставка: task уже в работе или завершён.
		telemetry.DeliveriesTotal.WithLabelValues(telemetry.OutcomeDuplicate).Inc()
		w.logger.Debug("duplicate delivery acknowledged", "task_id", id, "reason", err)
		return nil

	case errors.Is(err, ErrTaskNotFound):
		telemetry.DeliveriesTotal.WithLabelValues(telemetry.OutcomeOrphan).Inc()
		return fmt.Errorf("%w: %w", mq.ErrPermanent, err)

	case d.Settled():
		// Ack уже отправлен, но пул не принял task (остановка воркера).
		// Task остаётся started, его подберёт sweeper.
		telemetry.DeliveriesTotal.WithLabelValues(telemetry.OutcomeStarted).Inc()
		return err

	default:
		telemetry.DeliveriesTotal.WithLabelValues(telemetry.OutcomeRequeued).Inc()
		return err
	}
}

// ProcessTask переводит task из submitted в started и отправляет его
// в пул решений.
//
// ErrAlreadyHandled — task уже не в submitted.
// ErrTaskNotFound — task не существует.
func (w *Worker) ProcessTask(ctx context.Context, id uuid.UUID) error {
	return w.process(ctx, id, nil)
}

// Resume повторно отправляет в пул task, зависший в started
// (например, воркер упал после ack). Завершение условно по статусу,
// поэтому параллельное решение того же task не создаст второе решение.
func (w *Worker) Resume(ctx context.Context, task *domain.Task) error {
	if task.Status != domain.TaskStatusStarted {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyHandled, task.ID, task.Status)
	}
	w.logger.Info("resuming stale task", "task_id", task.ID, "started_at", task.StartedAt)
	return w.dispatch(ctx, task)
}

// process — общий путь для сообщения и sweeper'а.
// onStarted вызывается после успешного перехода в started и до dispatch.
func (w *Worker) process(ctx context.Context, id uuid.UUID, onStarted func() error) error {
	task, err := w.start(ctx, id)
	if err != nil {
		return err
	}

	if onStarted != nil {
		if err := onStarted(); err != nil {
			// Сообщение вернётся повторно и будет подтверждено как дубликат.
			w.logger.Warn("failed to acknowledge delivery", "task_id", id, "error", err)
		}
	}

	w.logger.Info("task started", "task_id", id, "items", task.Problem.Len())
	return w.dispatch(ctx, task)
}

// start выполняет переход submitted → started, повторяя временные ошибки.
func (w *Worker) start(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := retry.Value(ctx, w.logger, "mark_started", w.writePolicy, func() (*domain.Task, error) {
		task, err := w.store.MarkStarted(ctx, id, w.now())
		if repo.IsPermanent(err) {
			return nil, retry.Permanent(err)
		}
		return task, err
	})

	switch {
	case err == nil:
		return task, nil
	case errors.Is(err, repo.ErrInvalidState):
		return nil, fmt.Errorf("%w: %v", ErrAlreadyHandled, err)
	case errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	default:
		return nil, fmt.Errorf("mark task started: %w", err)
	}
}

// run решает task и сохраняет результат. Выполняется в пуле.
func (w *Worker) run(task *domain.Task) {
	ctx, span := tracer.Start(w.solveCtx, "worker.solve", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", task.ID.String()),
		attribute.Int("problem.items", task.Problem.Len()),
	)

	logger := telemetry.WithTaskID(w.logger, task.ID.String())

	telemetry.SolvesInFlight.Inc()
	defer telemetry.SolvesInFlight.Dec()

	result, err := w.solveWithRetry(ctx, task, logger)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, "interrupted")
			logger.Warn("solve interrupted, task left started for recovery", "error", err)
			return
		}
		span.SetStatus(codes.Error, "solve failed")
		w.fail(ctx, task, err, logger)
		return
	}

	span.SetAttributes(attribute.Int64("solution.total_value", int64(result.TotalValue)))
	w.complete(ctx, task, result, logger)
}

// solveWithRetry запускает решатель до solveAttempts раз. Результат
// проверяется против задачи; неверное решение считается неудачной попыткой.
func (w *Worker) solveWithRetry(ctx context.Context, task *domain.Task, logger *slog.Logger) (*solver.Result, error) {
	policy := w.solvePolicy
	policy.MaxTries = w.solveAttempts

	attempt := 0
	result, err := retry.Value(ctx, logger, "solve", policy, func() (*solver.Result, error) {
		attempt++
		if err := ctx.Err(); err != nil {
			return nil, retry.Permanent(err)
		}

		res, err := w.solveOnce(ctx, task)
		if errors.Is(err, domain.ErrInvalidProblem) || errors.Is(err, context.Canceled) {
			return nil, retry.Permanent(err)
		}
		return res, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d attempt(s): %w", ErrSolveFailed, attempt, err)
	}
	return result, nil
}

// solveOnce — одна попытка. Паника решателя превращается в ошибку.
func (w *Worker) solveOnce(ctx context.Context, task *domain.Task) (res *solver.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("solver panic: %v", r)
		}
	}()

	start := time.Now()
	res, err = w.solver.Solve(ctx, task.Problem)
	telemetry.SolveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	sol := domain.NewSolution(task.ID, res.PackedItems, res.TotalValue)
	if err := sol.Verify(task.Problem); err != nil {
		return nil, err
	}
	return res, nil
}

// writeContext — запись результата не прерывается остановкой воркера:
// решение уже найдено, его нужно сохранить.
func (w *Worker) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), w.writePolicy.MaxElapsedTime+5*time.Second)
}

// complete сохраняет решение и переводит task в completed.
func (w *Worker) complete(ctx context.Context, task *domain.Task, result *solver.Result, logger *slog.Logger) {
	ctx, cancel := w.writeContext(ctx)
	defer cancel()

	solution := domain.NewSolution(task.ID, result.PackedItems, result.TotalValue)

	err := retry.Do(ctx, logger, "complete_task", w.writePolicy, func() error {
		err := w.store.CompleteTask(ctx, solution, w.now())
		if repo.IsPermanent(err) {
			return retry.Permanent(err)
		}
		return err
	})

	switch {
	case err == nil:
		telemetry.TasksFinished.WithLabelValues(domain.TaskStatusCompleted.String()).Inc()
		logger.Info("task completed",
			"total_value", result.TotalValue,
			"packed_items", len(result.PackedItems),
			"generations", result.Generations,
		)
	case errors.Is(err, repo.ErrInvalidState):
		logger.Info("task already finished by another solve, result discarded")
	default:
		logger.Error("failed to persist solution, task left started for recovery", "error", err)
	}
}

// fail переводит task в failed с причиной.
func (w *Worker) fail(ctx context.Context, task *domain.Task, cause error, logger *slog.Logger) {
	ctx, cancel := w.writeContext(ctx)
	defer cancel()

	err := retry.Do(ctx, logger, "mark_failed", w.writePolicy, func() error {
		err := w.store.MarkFailed(ctx, task.ID, w.now(), cause.Error())
		if repo.IsPermanent(err) {
			return retry.Permanent(err)
		}
		return err
	})

	switch {
	case err == nil:
		telemetry.TasksFinished.WithLabelValues(domain.TaskStatusFailed.String()).Inc()
		logger.Error("task failed", "error", cause)
	case errors.Is(err, repo.ErrInvalidState):
		logger.Info("task already finished, failure not recorded", "error", cause)
	default:
		logger.Error("failed to mark task failed", "error", err, "cause", cause)
	}
}
