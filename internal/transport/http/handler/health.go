package handler

import (
	"net/http"

	"github.com/mandalnilabja/chatrelay/internal/types"
)

// HealthCheck handler returns the application health status
func (h *Repo) HealthCheck(w http.ResponseWriter, r *http.Request) {
	types.WriteJSON(w, http.StatusOK, types.HealthResponse{
		Status:  "ok",
		Message: "Backend is running",
	})
}
