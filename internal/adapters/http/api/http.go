// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/internal/domain/recommend"
	"github.com/okian/adrec/internal/domain/report"
	"github.com/okian/adrec/internal/domain/sink"
	"github.com/okian/adrec/pkg/logger"
)

// Default request bounds.
const (
	defaultRecommendations = 5
	maxRecommendations     = 50
	corsMaxAge             = 300
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Recommend(ctx context.Context, userID int64, limit int) (recommend.Recommendation, error)
	LogEvent(ctx context.Context, e model.Event) (sink.Outcome, error)
	Health(ctx context.Context) sink.Health
	Conversions(ctx context.Context, tenantID *int64) (report.ConversionReport, error)
	DailyEvents(ctx context.Context, tenantID *int64) (map[string]report.DailyCounts, error)
	AdManager
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	recommendHandler *RecommendHandler
	eventsHandler    *EventsHandler
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	reportsHandler   *ReportsHandler
	adsHandler       *AdsHandler

	corsOrigins []string
	logger      logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		logger: logger.Get().Named("api"),
	}
	cfg := handlerConfig{
		defaultLimit: defaultRecommendations,
		maxLimit:     maxRecommendations,
	}
	for _, opt := range opts {
		opt(s, &cfg)
	}

	s.recommendHandler = NewRecommendHandler(deps, cfg.defaultLimit, cfg.maxLimit, s.logger)
	s.eventsHandler = NewEventsHandler(deps, s.logger)
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.reportsHandler = NewReportsHandler(deps)
	s.adsHandler = NewAdsHandler(deps, s.logger)
	return s
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(s.corsOptions()))

	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r. Every route except /metrics is
// instrumented.
func (s *Server) Register(r chi.Router) {
	r.With(Instrument("recommend")).Get("/recommend", s.recommendHandler.HandleRecommend)
	r.With(Instrument("log_event")).Post("/log-event", s.eventsHandler.HandleLogEvent)
	r.With(Instrument("health")).Get("/health", s.healthHandler.HandleHealth)
	r.With(Instrument("stats")).Get("/stats", s.statsHandler.HandleStats)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Route("/reports", func(r chi.Router) {
		r.With(Instrument("reports_conversions")).Get("/conversions", s.reportsHandler.HandleConversions)
		r.With(Instrument("reports_events")).Get("/events", s.reportsHandler.HandleDailyEvents)
	})
	r.Route("/ads", func(r chi.Router) {
		r.With(Instrument("ads_list")).Get("/", s.adsHandler.HandleList)
		r.With(Instrument("ads_create")).Post("/", s.adsHandler.HandleCreate)
		r.With(Instrument("ads_get")).Get("/{id}", s.adsHandler.HandleGet)
		r.With(Instrument("ads_update")).Put("/{id}", s.adsHandler.HandleUpdate)
		r.With(Instrument("ads_delete")).Delete("/{id}", s.adsHandler.HandleDelete)
	})
}

func (s *Server) corsOptions() cors.Options {
	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", tenantHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         corsMaxAge,
	}
}

type errorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes msg rather than err so internal causes stay out of
// responses; err is kept for logs by the caller.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Detail: msg})
}
