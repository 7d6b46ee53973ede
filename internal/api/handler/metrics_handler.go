package handler

import (
	"net/http"

	"github.com/notifyhub/user-mail-queue/internal/queue"
)

// MetricsHandler serves a human-readable JSON snapshot of the in-memory
// buffer between the poller and the workers. Raw Prometheus metrics are
// available at /metrics.
type MetricsHandler struct {
	buf *queue.Buffer
}

func NewMetricsHandler(buf *queue.Buffer) *MetricsHandler {
	return &MetricsHandler{buf: buf}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time buffer depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"buffer": map[string]int{
			"depth":    h.buf.Depth(),
			"capacity": h.buf.Capacity(),
		},
	})
}
