package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/internal/domain/recommend"
	"github.com/okian/adrec/pkg/logger"
)

// Recommender returns ads for a user.
type Recommender interface {
	Recommend(ctx context.Context, userID int64, limit int) (recommend.Recommendation, error)
}

// RecommendHandler handles recommendation requests.
type RecommendHandler struct {
	deps         Recommender
	defaultLimit int
	maxLimit     int
	logger       logger.Logger
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(deps Recommender, defaultLimit, maxLimit int, log logger.Logger) *RecommendHandler {
	return &RecommendHandler{deps: deps, defaultLimit: defaultLimit, maxLimit: maxLimit, logger: log}
}

type recommendResponse struct {
	UserID          int64      `json:"user_id"`
	Recommendations []model.Ad `json:"recommendations"`
}

// HandleRecommend handles GET /recommend?user_id=<int>[&limit=<int>].
func (h *RecommendHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	const op = "api.recommend"

	userID, limit, err := h.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err).Error())
		return
	}

	rec, err := h.deps.Recommend(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error(r.Context(), "recommendation failed",
			logger.Int64("user_id", userID), logger.Error(WrapKind(op, ErrInternal, err)))
		writeError(w, http.StatusInternalServerError, "internal_error", "recommendations are temporarily unavailable")
		return
	}

	ads := rec.Ads
	if ads == nil {
		ads = []model.Ad{}
	}
	writeJSON(w, http.StatusOK, recommendResponse{UserID: userID, Recommendations: ads})
}

func (h *RecommendHandler) parseQuery(r *http.Request) (userID int64, limit int, err error) {
	q := r.URL.Query()

	raw := strings.TrimSpace(q.Get("user_id"))
	if raw == "" {
		return 0, 0, fmt.Errorf("missing user_id")
	}
	userID, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid user_id %q", raw)
	}

	limit = h.defaultLimit
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > h.maxLimit {
			return 0, 0, fmt.Errorf("limit must be an integer between 1 and %d", h.maxLimit)
		}
	}
	return userID, limit, nil
}
