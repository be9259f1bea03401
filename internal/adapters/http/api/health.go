package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/adrec/internal/domain/sink"
	"github.com/okian/adrec/pkg/metrics"
)

// Dependency status labels.
const (
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
)

// HealthChecker checks the delivery tiers.
type HealthChecker interface {
	Health(ctx context.Context) sink.Health
}

// HealthHandler handles health check and metrics requests.
type HealthHandler struct {
	deps    HealthChecker
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthChecker) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	KafkaStatus string `json:"kafka_status"`
	RedisStatus string `json:"redis_status"`
}

// HandleHealth handles GET /health. The process is always "ok"; the queue
// and buffer report whether they are reachable.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.deps.Health(r.Context())
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		KafkaStatus: connectionStatus(status.Queue),
		RedisStatus: connectionStatus(status.Buffer),
	})
}

// HandleMetrics serves the Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

func connectionStatus(up bool) string {
	if up {
		return statusConnected
	}
	return statusDisconnected
}
