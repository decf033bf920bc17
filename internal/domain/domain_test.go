package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Problem Tests ---

func TestProblem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		problem Problem
		wantErr bool
	}{
		{
			name:    "valid",
			problem: Problem{Capacity: 10, Weights: []uint32{5, 4, 6, 3}, Values: []uint32{10, 40, 30, 50}},
		},
		{
			name:    "empty",
			problem: Problem{Capacity: 0},
		},
		{
			name:    "max int4 is allowed",
			problem: Problem{Capacity: MaxStoredValue, Weights: []uint32{MaxStoredValue}, Values: []uint32{MaxStoredValue}},
		},
		{
			name:    "weight too large",
			problem: Problem{Capacity: 10, Weights: []uint32{MaxStoredValue + 1}, Values: []uint32{1}},
			wantErr: true,
		},
		{
			name:    "value too large",
			problem: Problem{Capacity: 10, Weights: []uint32{1}, Values: []uint32{1 << 31}},
			wantErr: true,
		},
		{
			name:    "capacity too large",
			problem: Problem{Capacity: 1 << 31},
			wantErr: true,
		},
		{
			name:    "length mismatch",
			problem: Problem{Capacity: 10, Weights: []uint32{1, 2}, Values: []uint32{1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.problem.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProblem), "expected ErrInvalidProblem, got %v", err)
		})
	}
}

func TestProblem_LengthMismatchMessage(t *testing.T) {
	err := Problem{Weights: []uint32{1}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same length")
}

func TestProblem_UpperBound(t *testing.T) {
	p := Problem{Weights: []uint32{1, 1, 1}, Values: []uint32{MaxStoredValue, MaxStoredValue, 7}}
	assert.Equal(t, uint64(2*MaxStoredValue+7), p.UpperBound())
}

func TestProblem_CloneIsIndependent(t *testing.T) {
	p := Problem{Capacity: 3, Weights: []uint32{1}, Values: []uint32{2}}
	c := p.Clone()
	c.Weights[0] = 100

	assert.Equal(t, uint32(1), p.Weights[0])
}

// --- TaskStatus Tests ---

func TestTaskStatus_Transitions(t *testing.T) {
	all := []TaskStatus{TaskStatusSubmitted, TaskStatusStarted, TaskStatusCompleted, TaskStatusFailed}

	allowed := map[[2]TaskStatus]bool{
		{TaskStatusSubmitted, TaskStatusStarted}: true,
		{TaskStatusStarted, TaskStatusCompleted}: true,
		{TaskStatusStarted, TaskStatusFailed}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]TaskStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)

			// Любой допустимый переход не уменьшает ранг.
			if from.CanTransitionTo(to) {
				assert.Less(t, from.Rank(), to.Rank())
			}
		}
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	assert.False(t, TaskStatusSubmitted.IsTerminal())
	assert.False(t, TaskStatusStarted.IsTerminal())
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
}

func TestParseTaskStatus(t *testing.T) {
	s, err := ParseTaskStatus("started")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusStarted, s)

	_, err = ParseTaskStatus("RUNNING")
	assert.Error(t, err)
}

// --- Task Tests ---

func TestNewTask(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := Problem{Capacity: 10, Weights: []uint32{5}, Values: []uint32{10}}

	task := NewTask(p, now)

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, TaskStatusSubmitted, task.Status)
	assert.Equal(t, now, task.SubmittedAt)
	assert.Nil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)
	assert.Nil(t, task.Solution)
	assert.Equal(t, p, task.Problem)
	assert.False(t, task.IsFinished())
}

func TestTask_Duration(t *testing.T) {
	start := time.Now()
	end := start.Add(3 * time.Second)
	task := &Task{StartedAt: &start, CompletedAt: &end}

	assert.Equal(t, 3*time.Second, task.Duration())
	assert.Zero(t, (&Task{}).Duration())
}

// --- Solution Tests ---

func TestSolution_Verify(t *testing.T) {
	p := Problem{Capacity: 10, Weights: []uint32{5, 4, 6, 3}, Values: []uint32{10, 40, 30, 50}}
	taskID := uuid.New()

	tests := []struct {
		name    string
		items   []uint32
		total   uint64
		wantErr bool
	}{
		{name: "optimal", items: []uint32{1, 3}, total: 90},
		{name: "empty", items: nil, total: 0},
		{name: "wrong total", items: []uint32{1, 3}, total: 80, wantErr: true},
		{name: "overweight", items: []uint32{0, 2}, total: 40, wantErr: true},
		{name: "out of range", items: []uint32{4}, total: 0, wantErr: true},
		{name: "duplicate", items: []uint32{3, 3}, total: 100, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSolution(taskID, tt.items, tt.total).Verify(p)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSolution)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewSolution_NilItemsBecomeEmpty(t *testing.T) {
	s := NewSolution(uuid.New(), nil, 0)
	assert.NotNil(t, s.PackedItems)
	assert.Empty(t, s.PackedItems)
}
