package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzacho/knapsack-service/internal/domain"
	"github.com/mzacho/knapsack-service/internal/telemetry"
	"github.com/mzacho/knapsack-service/internal/worker"
)

type listCall struct {
	status    domain.TaskStatus
	olderThan time.Time
	limit     int
}

// fakeStore возвращает заранее заданные tasks по статусу.
type fakeStore struct {
	tasks map[domain.TaskStatus][]domain.Task
	err   error
	calls []listCall
}

func (f *fakeStore) ListStale(ctx context.Context, status domain.TaskStatus, olderThan time.Time, limit int) ([]domain.Task, error) {
	f.calls = append(f.calls, listCall{status, olderThan, limit})
	if f.err != nil {
		return nil, f.err
	}
	return f.tasks[status], nil
}

// fakeWorker запоминает, какие tasks были переданы.
type fakeWorker struct {
	mu        sync.Mutex
	processed []uuid.UUID
	resumed   []uuid.UUID
	errs      map[uuid.UUID]error
}

func (f *fakeWorker) ProcessTask(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return err
	}
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeWorker) Resume(ctx context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[task.ID]; err != nil {
		return err
	}
	f.resumed = append(f.resumed, task.ID)
	return nil
}

func staleTask(status domain.TaskStatus) domain.Task {
	return domain.Task{ID: uuid.New(), Status: status}
}

func TestTick_RecoversBothStatuses(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sub1, sub2 := staleTask(domain.TaskStatusSubmitted), staleTask(domain.TaskStatusSubmitted)
	st := staleTask(domain.TaskStatusStarted)

	store := &fakeStore{tasks: map[domain.TaskStatus][]domain.Task{
		domain.TaskStatusSubmitted: {sub1, sub2},
		domain.TaskStatusStarted:   {st},
	}}
	w := &fakeWorker{}

	s := New(Config{
		Store:  store,
		Worker: w,
		Logger: telemetry.DiscardLogger(),
		Now:    func() time.Time { return now },
	})

	require.NoError(t, s.Tick(context.Background()))

	assert.Equal(t, []uuid.UUID{sub1.ID, sub2.ID}, w.processed)
	assert.Equal(t, []uuid.UUID{st.ID}, w.resumed)

	require.Len(t, store.calls, 2)
	assert.Equal(t, listCall{domain.TaskStatusSubmitted, now.Add(-DefaultSubmittedAfter), defaultBatchSize}, store.calls[0])
	assert.Equal(t, listCall{domain.TaskStatusStarted, now.Add(-DefaultStartedAfter), defaultBatchSize}, store.calls[1])
}

func TestTick_SkipsHandledAndContinuesOnErrors(t *testing.T) {
	handled, broken, ok := staleTask(domain.TaskStatusSubmitted), staleTask(domain.TaskStatusSubmitted), staleTask(domain.TaskStatusSubmitted)

	store := &fakeStore{tasks: map[domain.TaskStatus][]domain.Task{
		domain.TaskStatusSubmitted: {handled, broken, ok},
	}}
	w := &fakeWorker{errs: map[uuid.UUID]error{
		handled.ID: fmt.Errorf("%w: already started", worker.ErrAlreadyHandled),
		broken.ID:  errors.New("db down"),
	}}

	s := New(Config{Store: store, Worker: w, Logger: telemetry.DiscardLogger()})

	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, []uuid.UUID{ok.ID}, w.processed)
}

func TestTick_ListError(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	s := New(Config{Store: store, Worker: &fakeWorker{}, Logger: telemetry.DiscardLogger()})

	err := s.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list stale submitted tasks")
	assert.Contains(t, err.Error(), "list stale started tasks")
}

func TestValidateSchedule(t *testing.T) {
	for _, spec := range []string{"@every 30s", "*/5 * * * *", "@hourly"} {
		assert.NoError(t, ValidateSchedule(spec), spec)
	}
	for _, spec := range []string{"", "every 30s", "* * *"} {
		assert.Error(t, ValidateSchedule(spec), spec)
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New(Config{Store: &fakeStore{}, Worker: &fakeWorker{}, Schedule: "nonsense", Logger: telemetry.DiscardLogger()})
	assert.Error(t, s.Start(context.Background()))
	s.Stop()
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, DefaultSchedule, s.schedule)
	assert.Equal(t, DefaultSubmittedAfter, s.submittedAfter)
	assert.Equal(t, DefaultStartedAfter, s.startedAfter)
	assert.Equal(t, defaultBatchSize, s.batchSize)
}

func TestStart_ScheduleOff(t *testing.T) {
	store := &fakeStore{}
	s := New(Config{Store: store, Worker: &fakeWorker{}, Schedule: ScheduleOff, Logger: telemetry.DiscardLogger()})

	require.NoError(t, s.Start(context.Background()))
	assert.Nil(t, s.cron)
	assert.Empty(t, store.calls)
	s.Stop()
}
