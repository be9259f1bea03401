package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/adrec/internal/domain/report"
)

// Reporter aggregates event history.
type Reporter interface {
	Conversions(ctx context.Context, tenantID *int64) (report.ConversionReport, error)
	DailyEvents(ctx context.Context, tenantID *int64) (map[string]report.DailyCounts, error)
}

// ReportsHandler serves tenant reports.
type ReportsHandler struct {
	deps Reporter
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps Reporter) *ReportsHandler {
	return &ReportsHandler{deps: deps}
}

type conversionResponse struct {
	TenantID *int64 `json:"tenant_id,omitempty"`
	report.ConversionReport
}

type dailyResponse struct {
	TenantID *int64                        `json:"tenant_id,omitempty"`
	Days     map[string]report.DailyCounts `json:"days"`
}

// HandleConversions handles GET /reports/conversions[?tenant_id=].
func (h *ReportsHandler) HandleConversions(w http.ResponseWriter, r *http.Request) {
	const op = "api.reports_conversions"

	tenantID, err := parseTenant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err).Error())
		return
	}
	rep, err := h.deps.Conversions(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "report is temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, conversionResponse{TenantID: tenantID, ConversionReport: rep})
}

// HandleDailyEvents handles GET /reports/events[?tenant_id=].
func (h *ReportsHandler) HandleDailyEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.reports_events"

	tenantID, err := parseTenant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err).Error())
		return
	}
	days, err := h.deps.DailyEvents(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "report is temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, dailyResponse{TenantID: tenantID, Days: days})
}

func parseTenant(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("tenant_id"))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant_id %q", raw)
	}
	return &id, nil
}
