package api

import (
	"encoding/json"
	"net/http"

	"github.com/mzacho/knapsack-service/internal/telemetry"
)

// maxBodyBytes — ограничение размера тела POST /knapsack.
const maxBodyBytes = 8 << 20

// SubmitTask принимает задачу.
// POST /knapsack
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := decodeStrict(json.NewDecoder(body), &req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	problem, err := req.ToDomain()
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	task, err := h.tasks.Submit(r.Context(), problem)
	if HandleServiceError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	Created(w, TaskFromDomain(task))
}

// GetTask возвращает состояние task.
// GET /knapsack/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Query(r.Context(), r.PathValue("id"))
	if HandleServiceError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	Success(w, TaskFromDomain(task))
}
