package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzacho/knapsack-service/internal/domain"
	"github.com/mzacho/knapsack-service/internal/service"
	"github.com/mzacho/knapsack-service/internal/telemetry"
)

// fakeTasks — TaskService с заранее заданными ответами.
type fakeTasks struct {
	submitted []domain.Problem
	task      *domain.Task
	err       error
	panics    bool
}

func (f *fakeTasks) Submit(ctx context.Context, problem domain.Problem) (*domain.Task, error) {
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	f.submitted = append(f.submitted, problem)
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewTask(problem, time.Unix(1700000000, 0)), nil
}

func (f *fakeTasks) Query(ctx context.Context, rawID string) (*domain.Task, error) {
	if f.panics {
		panic("boom")
	}
	if _, err := uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("%w: %q", service.ErrInvalidID, rawID)
	}
	return f.task, f.err
}

func newServer(tasks *fakeTasks) *httptest.Server {
	mux := http.NewServeMux()
	NewHandler(Config{Tasks: tasks, Logger: telemetry.DiscardLogger()}).RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSubmitTask(t *testing.T) {
	bodies := map[string]string{
		"flat":    `{"capacity": 10, "weights": [5, 4, 6, 3], "values": [10, 40, 30, 50]}`,
		"wrapped": `{"problem": {"capacity": 10, "weights": [5, 4, 6, 3], "values": [10, 40, 30, 50]}}`,
		"trailing newline": "{\"capacity\": 10, \"weights\": [5, 4, 6, 3], \"values\": [10, 40, 30, 50]}\n\t ",
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			tasks := &fakeTasks{}
			srv := newServer(tasks)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/knapsack", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			got := decode[TaskResponse](t, resp)
			assert.Equal(t, "submitted", got.Status)
			assert.Equal(t, int64(1700000000), got.Timestamps.Submitted)
			assert.Nil(t, got.Timestamps.Started)
			assert.Nil(t, got.Solution)
			require.NotNil(t, got.Problem.Capacity)
			assert.Equal(t, uint32(10), *got.Problem.Capacity)
			assert.Equal(t, []uint32{5, 4, 6, 3}, got.Problem.Weights)

			require.Len(t, tasks.submitted, 1)
		})
	}
}

func TestSubmitTask_OmitsAbsentFields(t *testing.T) {
	srv := newServer(&fakeTasks{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/knapsack", "application/json",
		strings.NewReader(`{"capacity": 0, "weights": [], "values": []}`))
	require.NoError(t, err)

	raw := decode[map[string]any](t, resp)
	assert.NotContains(t, raw, "solution")
	assert.NotContains(t, raw, "error")
	assert.NotContains(t, raw["timestamps"], "started")
}

func TestSubmitTask_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"capacity": 10,`},
		{name: "negative weight", body: `{"capacity": 10, "weights": [-1], "values": [1]}`},
		{name: "weight exceeds int4", body: `{"capacity": 10, "weights": [2147483648], "values": [1]}`},
		{name: "length mismatch", body: `{"capacity": 10, "weights": [1, 2], "values": [1]}`},
		{name: "missing capacity", body: `{"weights": [1], "values": [1]}`},
		{name: "unknown field", body: `{"capacity": 1, "items": []}`},
		{name: "trailing brace", body: `{"capacity": 1, "weights": [], "values": []}}`},
		{name: "trailing bracket", body: `{"capacity": 1, "weights": [], "values": []}]`},
		{name: "trailing value", body: `{"capacity": 1, "weights": [], "values": []} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := &fakeTasks{}
			srv := newServer(tasks)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/knapsack", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			got := decode[ErrorResponse](t, resp)
			assert.Equal(t, ErrCodeBadRequest, got.Error.Code)
			assert.Empty(t, tasks.submitted)
		})
	}
}

func TestGetTask_Completed(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	started, completed := now.Add(time.Second), now.Add(3*time.Second)

	task := domain.NewTask(domain.Problem{Capacity: 10, Weights: []uint32{5, 4, 6, 3}, Values: []uint32{10, 40, 30, 50}}, now)
	task.Status = domain.TaskStatusCompleted
	task.StartedAt, task.CompletedAt = &started, &completed
	task.Solution = domain.NewSolution(task.ID, []uint32{1, 3}, 90)

	srv := newServer(&fakeTasks{task: task})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/knapsack/" + task.ID.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[TaskResponse](t, resp)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "completed", got.Status)
	require.NotNil(t, got.Timestamps.Completed)
	assert.Equal(t, completed.Unix(), *got.Timestamps.Completed)
	require.NotNil(t, got.Solution)
	assert.Equal(t, []uint32{1, 3}, got.Solution.PackedItems)
	assert.Equal(t, uint64(90), got.Solution.TotalValue)
}

func TestGetTask_Failed(t *testing.T) {
	now := time.Now()
	task := domain.NewTask(domain.Problem{Capacity: 1}, now)
	task.Status = domain.TaskStatusFailed
	task.StartedAt, task.FailedAt = &now, &now
	task.Error = "solver exhausted attempts"

	srv := newServer(&fakeTasks{task: task})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/knapsack/" + task.ID.String())
	require.NoError(t, err)

	got := decode[TaskResponse](t, resp)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "solver exhausted attempts", got.Error)
	assert.NotNil(t, got.Timestamps.Failed)
	assert.Nil(t, got.Solution)
}

func TestGetTask_Errors(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		tasks      *fakeTasks
		wantStatus int
		wantCode   ErrorCode
	}{
		{
			name:       "malformed id",
			id:         "hhh",
			tasks:      &fakeTasks{},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
		{
			name:       "not found",
			id:         uuid.NewString(),
			tasks:      &fakeTasks{err: service.ErrTaskNotFound},
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeNotFound,
		},
		{
			name:       "inconsistent",
			id:         uuid.NewString(),
			tasks:      &fakeTasks{err: service.ErrInconsistent},
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternalError,
		},
		{
			name:       "store failure",
			id:         uuid.NewString(),
			tasks:      &fakeTasks{err: errors.New("db down")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternalError,
		},
		{
			name:       "panic",
			id:         uuid.NewString(),
			tasks:      &fakeTasks{panics: true},
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(tt.tasks)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/knapsack/" + tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			got := decode[ErrorResponse](t, resp)
			assert.Equal(t, tt.wantCode, got.Error.Code)
		})
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	srv := newServer(&fakeTasks{})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/knapsack/"+uuid.NewString(), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mark("a"), mark("b"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b"}, order)
}
