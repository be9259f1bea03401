package api

import (
	"net/http"
	"time"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats: the provider's snapshot plus the API's
// own uptime.
type StatsHandler struct {
	provider StatsProvider
	started  time.Time
}

// NewStatsHandler creates a new stats handler; uptime counts from now.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, started: time.Now()}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.provider.GetStats()
	out := make(map[string]interface{}, len(snapshot)+1)
	for k, v := range snapshot {
		out[k] = v
	}
	out["apiUptimeSeconds"] = int64(time.Since(h.started).Seconds())
	writeJSON(w, http.StatusOK, out)
}
