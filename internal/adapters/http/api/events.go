package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/internal/domain/sink"
	"github.com/okian/adrec/pkg/logger"
)

// maxEventBody bounds the POST /log-event request body.
const maxEventBody = 64 << 10

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// getValidator returns the shared validator. Field errors are reported under
// their JSON names.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// EventLogger records events through the delivery chain.
type EventLogger interface {
	LogEvent(ctx context.Context, e model.Event) (sink.Outcome, error)
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps   EventLogger
	now    func() time.Time
	logger logger.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventLogger, log logger.Logger) *EventsHandler {
	return &EventsHandler{deps: deps, now: time.Now, logger: log}
}

// eventRequest mirrors the OpenAPI schema for POST /log-event.
type eventRequest struct {
	UserID    *int64  `json:"user_id"`
	AdID      *int64  `json:"ad_id" validate:"required"`
	EventType *string `json:"event_type" validate:"required"`
	TenantID  *int64  `json:"tenant_id" validate:"required"`
	Timestamp *int64  `json:"timestamp"`
}

// fieldError is one entry of a 422 response.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type validationResponse struct {
	Detail []fieldError `json:"detail"`
}

type logEventResponse struct {
	Message string       `json:"message"`
	Event   model.Record `json:"event"`
}

var outcomeMessages = map[sink.Outcome]string{
	sink.Queued:            "Event logged to queue successfully",
	sink.BufferedFallback:  "Event logged to buffer (fallback) successfully",
	sink.PersistedFallback: "Event logged to file (fallback) successfully",
}

// HandleLogEvent handles POST /log-event requests.
func (h *EventsHandler) HandleLogEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.log_event"

	var req eventRequest
	if !decodeBody(w, r, op, maxEventBody, &req) {
		return
	}

	if details := req.validate(); len(details) > 0 {
		h.logger.Debug(r.Context(), "rejected event", logger.Error(NewKind(op, ErrValidation)))
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Detail: details})
		return
	}

	e := req.event(h.now())
	outcome, err := h.deps.LogEvent(r.Context(), e)
	if err != nil || !outcome.Accepted() {
		code := "unavailable"
		if err != nil {
			if errors.Is(err, sink.ErrEventLost) {
				code = "event_lost"
			}
			h.logger.Error(r.Context(), "event not accepted",
				logger.String("code", code), logger.Error(WrapKind(op, ErrUnavailable, err)))
		}
		writeError(w, http.StatusServiceUnavailable, code,
			"Event logging service is unavailable (queue/buffer/file fallback attempted).")
		return
	}

	writeJSON(w, http.StatusOK, logEventResponse{
		Message: outcomeMessages[outcome],
		Event:   model.NewRecord(e),
	})
}

// validate returns one entry per missing or blank required field.
func (e *eventRequest) validate() []fieldError {
	details := validationDetails(e)
	if e.EventType != nil && !model.EventKind(*e.EventType).Valid() {
		details = append(details, fieldError{
			Loc:  []string{"body", "event_type"},
			Msg:  "event_type must not be blank",
			Type: "value_error",
		})
	}
	return details
}

// validationDetails runs the struct tags of v through the shared validator.
func validationDetails(v any) []fieldError {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}
	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, detailFor(fe))
	}
	return details
}

func detailFor(fe validator.FieldError) fieldError {
	loc := []string{"body", fe.Field()}
	switch fe.Tag() {
	case "required", "min":
		return fieldError{Loc: loc, Msg: "field required", Type: "value_error.missing"}
	case "max":
		return fieldError{Loc: loc, Msg: fmt.Sprintf("ensure this value has at most %s characters", fe.Param()), Type: "value_error.any_str.max_length"}
	case "datetime":
		return fieldError{Loc: loc, Msg: "invalid datetime, expected RFC 3339", Type: "value_error.datetime"}
	default:
		return fieldError{Loc: loc, Msg: fe.Error(), Type: "value_error"}
	}
}

func (e *eventRequest) event(now time.Time) model.Event {
	ts := now.Unix()
	if e.Timestamp != nil {
		ts = *e.Timestamp
	}
	return model.Event{
		TenantID:   *e.TenantID,
		AdID:       *e.AdID,
		UserID:     e.UserID,
		Kind:       model.EventKind(strings.TrimSpace(*e.EventType)),
		OccurredAt: time.Unix(ts, 0).UTC(),
	}
}

// decodeBody decodes a JSON request body of at most limit bytes into v. On
// failure it writes a 422 for mistyped fields or a 400 otherwise and returns
// false.
func decodeBody(w http.ResponseWriter, r *http.Request, op string, limit int64, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v)
	if err == nil {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Detail: []fieldError{{
			Loc:  []string{"body", typeErr.Field},
			Msg:  fmt.Sprintf("value is not a valid %s", typeErr.Type),
			Type: "type_error",
		}}})
		return false
	}
	writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err).Error())
	return false
}
