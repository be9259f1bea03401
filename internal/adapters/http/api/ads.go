package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/pkg/logger"
)

// Ad management request bounds.
const (
	tenantHeader      = "X-Tenant-Id"
	defaultAdsPerPage = 10
	maxAdsPerPage     = 100
	maxAdBody         = 256 << 10
)

// AdManager manages one tenant's ads.
type AdManager interface {
	ListAds(ctx context.Context, tenantID int64, page, perPage int) ([]model.Ad, int64, error)
	GetAd(ctx context.Context, tenantID, id int64) (model.Ad, error)
	CreateAd(ctx context.Context, a model.Ad) (model.Ad, error)
	UpdateAd(ctx context.Context, a model.Ad) (model.Ad, error)
	DeleteAd(ctx context.Context, tenantID, id int64) error
}

// AdsHandler handles ad management requests. Every request is scoped to the
// tenant named by the X-Tenant-Id header.
type AdsHandler struct {
	deps   AdManager
	now    func() time.Time
	logger logger.Logger
}

// NewAdsHandler creates a new ads handler.
func NewAdsHandler(deps AdManager, log logger.Logger) *AdsHandler {
	return &AdsHandler{deps: deps, now: time.Now, logger: log}
}

type adResponse struct {
	model.Ad
	Active bool `json:"active"`
}

type pageMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

type adPage struct {
	Data []adResponse `json:"data"`
	Meta pageMeta     `json:"meta"`
}

// createAdRequest is the body of POST /ads.
type createAdRequest struct {
	Name           string          `json:"name" validate:"required,max=255"`
	Content        string          `json:"content" validate:"required"`
	StartTime      string          `json:"start_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime        string          `json:"end_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	TargetAudience json.RawMessage `json:"target_audience"`
}

// updateAdRequest is the body of PUT /ads/{id}. Absent fields keep their
// stored values.
type updateAdRequest struct {
	Name           *string         `json:"name" validate:"omitnil,min=1,max=255"`
	Content        *string         `json:"content" validate:"omitnil,min=1"`
	StartTime      *string         `json:"start_time" validate:"omitnil,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime        *string         `json:"end_time" validate:"omitnil,datetime=2006-01-02T15:04:05Z07:00"`
	TargetAudience json.RawMessage `json:"target_audience"`
}

// HandleList handles GET /ads[?page=&per_page=].
func (h *AdsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.ads_list"

	tenantID, err := tenantFromHeader(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err).Error())
		return
	}
	page, perPage, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err).Error())
		return
	}

	ads, total, err := h.deps.ListAds(r.Context(), tenantID, page, perPage)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	data := make([]adResponse, len(ads))
	for i := range ads {
		data[i] = h.response(ads[i])
	}
	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}
	writeJSON(w, http.StatusOK, adPage{
		Data: data,
		Meta: pageMeta{CurrentPage: page, PerPage: perPage, Total: total, LastPage: lastPage},
	})
}

// HandleGet handles GET /ads/{id}.
func (h *AdsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.ads_get"

	tenantID, id, ok := h.target(w, r, op)
	if !ok {
		return
	}
	ad, err := h.deps.GetAd(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, h.response(ad))
}

// HandleCreate handles POST /ads.
func (h *AdsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.ads_create"

	tenantID, err := tenantFromHeader(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err).Error())
		return
	}
	var req createAdRequest
	if !decodeBody(w, r, op, maxAdBody, &req) {
		return
	}

	ad, details := req.ad(tenantID)
	if len(details) > 0 {
		h.logger.Debug(r.Context(), "rejected ad", logger.Error(NewKind(op, ErrValidation)))
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Detail: details})
		return
	}

	created, err := h.deps.CreateAd(r.Context(), ad)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.response(created))
}

// HandleUpdate handles PUT /ads/{id}.
func (h *AdsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.ads_update"

	tenantID, id, ok := h.target(w, r, op)
	if !ok {
		return
	}
	var req updateAdRequest
	if !decodeBody(w, r, op, maxAdBody, &req) {
		return
	}
	if details := validationDetails(&req); len(details) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Detail: details})
		return
	}

	current, err := h.deps.GetAd(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	next, details := req.apply(current)
	if len(details) > 0 {
		h.logger.Debug(r.Context(), "rejected ad update", logger.Int64("ad_id", id), logger.Error(NewKind(op, ErrValidation)))
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Detail: details})
		return
	}

	updated, err := h.deps.UpdateAd(r.Context(), next)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, h.response(updated))
}

// HandleDelete handles DELETE /ads/{id}.
func (h *AdsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.ads_delete"

	tenantID, id, ok := h.target(w, r, op)
	if !ok {
		return
	}
	if err := h.deps.DeleteAd(r.Context(), tenantID, id); err != nil {
		h.fail(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdsHandler) response(a model.Ad) adResponse { //nolint:gocritic // hugeParam: Ad is passed by value across layers
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return adResponse{Ad: a, Active: a.Active(h.now())}
}

// target resolves the tenant header and the {id} path parameter. A
// malformed id is reported as not found.
func (h *AdsHandler) target(w http.ResponseWriter, r *http.Request, op string) (tenantID, id int64, ok bool) {
	tenantID, err := tenantFromHeader(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err).Error())
		return 0, 0, false
	}
	id, err = strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "not_found", "ad not found")
		return 0, 0, false
	}
	return tenantID, id, true
}

func (h *AdsHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, model.ErrAdNotFound) {
		h.logger.Debug(r.Context(), "ad not found", logger.Error(WrapKind(op, ErrNotFound, err)))
		writeError(w, http.StatusNotFound, "not_found", "ad not found")
		return
	}
	h.logger.Error(r.Context(), "ad request failed", logger.Error(Wrap(op, err)))
	writeError(w, http.StatusInternalServerError, "internal_error", "ads are temporarily unavailable")
}

func (req *createAdRequest) ad(tenantID int64) (model.Ad, []fieldError) {
	if details := validationDetails(req); len(details) > 0 {
		return model.Ad{}, details
	}
	a := model.Ad{TenantID: tenantID, Name: req.Name, Content: req.Content}

	var details []fieldError
	a.StartTime, details = parseTime("start_time", req.StartTime, details)
	a.EndTime, details = parseTime("end_time", req.EndTime, details)
	a.Audience, details = parseAudience(req.TargetAudience, details)
	return a, checkWindow(a, details)
}

// apply merges the request into a, the currently stored ad.
func (req *updateAdRequest) apply(a model.Ad) (model.Ad, []fieldError) { //nolint:gocritic // hugeParam: Ad is passed by value across layers
	var details []fieldError
	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.Content != nil {
		a.Content = *req.Content
	}
	if req.StartTime != nil {
		a.StartTime, details = parseTime("start_time", *req.StartTime, details)
	}
	if req.EndTime != nil {
		a.EndTime, details = parseTime("end_time", *req.EndTime, details)
	}
	if req.TargetAudience != nil {
		a.Audience, details = parseAudience(req.TargetAudience, details)
	}
	// Tags are derived from the audience document on read.
	a.Tags = nil
	return a, checkWindow(a, details)
}

func parseTime(field, raw string, details []fieldError) (time.Time, []fieldError) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, append(details, fieldError{
			Loc:  []string{"body", field},
			Msg:  "invalid datetime, expected RFC 3339",
			Type: "value_error.datetime",
		})
	}
	return t.UTC(), details
}

// checkWindow requires the end to fall strictly after the start.
func checkWindow(a model.Ad, details []fieldError) []fieldError { //nolint:gocritic // hugeParam: Ad is passed by value across layers
	if len(details) > 0 || a.EndTime.After(a.StartTime) {
		return details
	}
	return append(details, fieldError{
		Loc:  []string{"body", "end_time"},
		Msg:  "end_time must be after start_time",
		Type: "value_error",
	})
}

// parseAudience accepts a JSON document, or a string holding one. Null
// clears the audience.
func parseAudience(raw json.RawMessage, details []fieldError) (json.RawMessage, []fieldError) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, details
	}
	if trimmed[0] != '"' {
		return append(json.RawMessage(nil), trimmed...), details
	}
	var doc string
	if err := json.Unmarshal(trimmed, &doc); err != nil || !json.Valid([]byte(doc)) {
		return nil, append(details, fieldError{
			Loc:  []string{"body", "target_audience"},
			Msg:  "target_audience must be a valid JSON document",
			Type: "value_error.json",
		})
	}
	return json.RawMessage(doc), details
}

func tenantFromHeader(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(tenantHeader))
	if raw == "" {
		return 0, fmt.Errorf("missing %s header", tenantHeader)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s header %q", tenantHeader, raw)
	}
	return id, nil
}

func parsePage(r *http.Request) (page, perPage int, err error) {
	page, perPage = 1, defaultAdsPerPage
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("invalid page %q", raw)
		}
	}
	if raw := strings.TrimSpace(q.Get("per_page")); raw != "" {
		perPage, err = strconv.Atoi(raw)
		if err != nil || perPage < 1 || perPage > maxAdsPerPage {
			return 0, 0, fmt.Errorf("per_page must be between 1 and %d", maxAdsPerPage)
		}
	}
	return page, perPage, nil
}
