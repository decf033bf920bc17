package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzacho/knapsack-service/internal/domain"
	"github.com/mzacho/knapsack-service/internal/repo"
	"github.com/mzacho/knapsack-service/internal/telemetry"
)

// memStore — TaskStore в памяти.
type memStore struct {
	mu        sync.Mutex
	tasks     map[uuid.UUID]domain.Task
	solutions map[uuid.UUID]domain.Solution

	createErrs []error
	creates    int
}

func newMemStore() *memStore {
	return &memStore{
		tasks:     map[uuid.UUID]domain.Task{},
		solutions: map[uuid.UUID]domain.Solution{},
	}
}

func (s *memStore) CreateTask(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creates++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return err
		}
	}
	s.tasks[task.ID] = *task
	return nil
}

func (s *memStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &task, nil
}

func (s *memStore) GetSolutionByTask(ctx context.Context, taskID uuid.UUID) (*domain.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sol, ok := s.solutions[taskID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &sol, nil
}

// recordingPublisher запоминает опубликованные id.
type recordingPublisher struct {
	mu        sync.Mutex
	published []uuid.UUID
	err       error
}

func (p *recordingPublisher) PublishTaskSubmitted(ctx context.Context, taskID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, taskID)
	return nil
}

var fixture = domain.Problem{Capacity: 10, Weights: []uint32{5, 4, 6, 3}, Values: []uint32{10, 40, 30, 50}}

func newTestService(store *memStore, pub *recordingPublisher) *Service {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return New(Config{
		Store:     store,
		Publisher: pub,
		Logger:    telemetry.DiscardLogger(),
		Now:       func() time.Time { return now },
	})
}

func TestSubmit_PersistsAndPublishes(t *testing.T) {
	store, pub := newMemStore(), &recordingPublisher{}
	svc := newTestService(store, pub)

	task, err := svc.Submit(context.Background(), fixture)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusSubmitted, task.Status)
	assert.Nil(t, task.StartedAt)
	assert.Nil(t, task.Solution)
	assert.Equal(t, []uuid.UUID{task.ID}, pub.published)

	stored, err := store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, fixture, stored.Problem)
}

func TestSubmit_InvalidProblemIsNotPersisted(t *testing.T) {
	store, pub := newMemStore(), &recordingPublisher{}
	svc := newTestService(store, pub)

	p := domain.Problem{Capacity: 10, Weights: []uint32{1 << 31}, Values: []uint32{1}}
	_, err := svc.Submit(context.Background(), p)

	assert.ErrorIs(t, err, domain.ErrInvalidProblem)
	assert.Zero(t, store.creates)
	assert.Empty(t, pub.published)
}

func TestSubmit_RetriesTransientCreate(t *testing.T) {
	store, pub := newMemStore(), &recordingPublisher{}
	store.createErrs = []error{errors.New("connection reset")}
	svc := newTestService(store, pub)

	task, err := svc.Submit(context.Background(), fixture)
	require.NoError(t, err)

	assert.Equal(t, 2, store.creates)
	assert.Equal(t, []uuid.UUID{task.ID}, pub.published)
}

func TestSubmit_PermanentCreateErrorDoesNotPublish(t *testing.T) {
	store, pub := newMemStore(), &recordingPublisher{}
	store.createErrs = []error{repo.ErrAlreadyExists}
	svc := newTestService(store, pub)

	_, err := svc.Submit(context.Background(), fixture)

	assert.ErrorIs(t, err, repo.ErrAlreadyExists)
	assert.Equal(t, 1, store.creates)
	assert.Empty(t, pub.published)
}

func TestSubmit_PublishFailureStillReturnsTask(t *testing.T) {
	store, pub := newMemStore(), &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(store, pub)

	task, err := svc.Submit(context.Background(), fixture)
	require.NoError(t, err)

	_, err = store.GetTask(context.Background(), task.ID)
	assert.NoError(t, err, "task must stay persisted for recovery")
}

func TestQuery_RoundTrip(t *testing.T) {
	store, pub := newMemStore(), &recordingPublisher{}
	svc := newTestService(store, pub)

	task, err := svc.Submit(context.Background(), fixture)
	require.NoError(t, err)

	got, err := svc.Query(context.Background(), task.ID.String())
	require.NoError(t, err)

	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, domain.TaskStatusSubmitted, got.Status)
	assert.Equal(t, fixture, got.Problem)
	assert.Nil(t, got.Solution)
}

func TestQuery_CompletedIncludesSolution(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &recordingPublisher{})

	now := time.Now().UTC()
	task := domain.NewTask(fixture, now)
	task.Status = domain.TaskStatusCompleted
	task.StartedAt, task.CompletedAt = &now, &now
	store.tasks[task.ID] = *task
	store.solutions[task.ID] = *domain.NewSolution(task.ID, []uint32{1, 3}, 90)

	got, err := svc.Query(context.Background(), task.ID.String())
	require.NoError(t, err)
	require.NotNil(t, got.Solution)
	assert.Equal(t, uint64(90), got.Solution.TotalValue)
	assert.NoError(t, got.Solution.Verify(got.Problem))
}

func TestQuery_Errors(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &recordingPublisher{})

	_, err := svc.Query(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = svc.Query(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrTaskNotFound)

	task := domain.NewTask(fixture, time.Now())
	task.Status = domain.TaskStatusCompleted
	store.tasks[task.ID] = *task

	_, err = svc.Query(context.Background(), task.ID.String())
	assert.ErrorIs(t, err, ErrInconsistent)
}
