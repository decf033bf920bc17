package api

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/mzacho/knapsack-service/internal/domain"
)

// ProblemDTO — задача в запросе и ответе.
type ProblemDTO struct {
	Capacity *uint32  `json:"capacity"`
	Weights  []uint32 `json:"weights"`
	Values   []uint32 `json:"values"`
}

// SubmitRequest — запрос на создание task.
//
// Принимаются две формы тела:
//
//	{"capacity": 10, "weights": [...], "values": [...]}
//	{"problem": {"capacity": 10, "weights": [...], "values": [...]}}
type SubmitRequest struct {
	ProblemDTO
	Problem *ProblemDTO `json:"problem,omitempty"`
}

var errMissingCapacity = errors.New("capacity is required")

// ToDomain возвращает задачу из запроса.
func (r SubmitRequest) ToDomain() (domain.Problem, error) {
	p := r.ProblemDTO
	if r.Problem != nil {
		p = *r.Problem
	}
	if p.Capacity == nil {
		return domain.Problem{}, errMissingCapacity
	}
	return domain.Problem{
		Capacity: *p.Capacity,
		Weights:  orEmpty(p.Weights),
		Values:   orEmpty(p.Values),
	}, nil
}

// TimestampsDTO — моменты смены статуса, unix-время в секундах.
type TimestampsDTO struct {
	Submitted int64  `json:"submitted"`
	Started   *int64 `json:"started,omitempty"`
	Completed *int64 `json:"completed,omitempty"`
	Failed    *int64 `json:"failed,omitempty"`
}

// SolutionDTO — решение в ответе.
type SolutionDTO struct {
	PackedItems []uint32 `json:"packed_items"`
	TotalValue  uint64   `json:"total_value"`
}

// TaskResponse — представление task.
// Solution присутствует только у completed, Error — только у failed.
type TaskResponse struct {
	ID         uuid.UUID     `json:"id"`
	Status     string        `json:"status"`
	Timestamps TimestampsDTO `json:"timestamps"`
	Problem    ProblemDTO    `json:"problem"`
	Solution   *SolutionDTO  `json:"solution,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t *domain.Task) TaskResponse {
	capacity := t.Problem.Capacity
	resp := TaskResponse{
		ID:     t.ID,
		Status: t.Status.String(),
		Timestamps: TimestampsDTO{
			Submitted: t.SubmittedAt.Unix(),
			Started:   unixOrNil(t.StartedAt),
			Completed: unixOrNil(t.CompletedAt),
			Failed:    unixOrNil(t.FailedAt),
		},
		Problem: ProblemDTO{
			Capacity: &capacity,
			Weights:  orEmpty(t.Problem.Weights),
			Values:   orEmpty(t.Problem.Values),
		},
		Error: t.Error,
	}

	if t.Status == domain.TaskStatusCompleted && t.Solution != nil {
		resp.Solution = &SolutionDTO{
			PackedItems: orEmpty(t.Solution.PackedItems),
			TotalValue:  t.Solution.TotalValue,
		}
	}
	return resp
}

// decodeStrict декодирует тело, запрещая неизвестные поля и хвост после JSON.
func decodeStrict(dec *json.Decoder, v any) error {
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// More() не видит лишние '}' и ']', поэтому после значения
	// должен быть только конец потока.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func unixOrNil(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.Unix()
	return &v
}

func orEmpty(s []uint32) []uint32 {
	if s == nil {
		return []uint32{}
	}
	return s
}
