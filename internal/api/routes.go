package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	mux.Handle("POST /knapsack", chain(http.HandlerFunc(h.SubmitTask)))
	mux.Handle("GET /knapsack/{id}", chain(http.HandlerFunc(h.GetTask)))
}
