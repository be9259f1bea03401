package testevents

import "time"

// Config holds configuration for a traffic run.
type Config struct {
	BaseURL         string        // Base URL of the service
	NumEvents       int           // Number of impressions to generate
	Users           int           // Distinct user ids to draw from
	Ads             []int64       // Ad ids to reference
	Tenants         int           // Distinct tenant ids to draw from
	ClickRatio      float64       // Probability that an impression is followed by a click
	AnonymousRatio  float64       // Probability that an event carries no user
	Recommendations int           // Recommendation requests issued after the events
	Limit           int           // ?limit for recommendation requests
	Workers         int           // Number of concurrent workers
	Timeout         time.Duration // HTTP request timeout
	Seed            int64         // Random seed; 0 picks one from the clock
	OutputFile      string        // Output file for generated events
	LogFile         string        // Log file for run output
	Verbose         bool          // Enable verbose logging
}

// Event is the POST /log-event body.
type Event struct {
	UserID    *int64 `json:"user_id,omitempty"`
	AdID      int64  `json:"ad_id"`
	EventType string `json:"event_type"`
	TenantID  int64  `json:"tenant_id"`
	Timestamp int64  `json:"timestamp"`
}

// LogEventResponse is the body of a successful POST /log-event.
type LogEventResponse struct {
	Message string `json:"message"`
	Event   Event  `json:"event"`
}

// Ad is the subset of a recommended ad the tool inspects.
type Ad struct {
	ID   int64    `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// RecommendResponse is the body of GET /recommend.
type RecommendResponse struct {
	UserID          int64 `json:"user_id"`
	Recommendations []Ad  `json:"recommendations"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	KafkaStatus string `json:"kafka_status"`
	RedisStatus string `json:"redis_status"`
}

// Stats holds run statistics.
type Stats struct {
	RunID                  string
	EventsGenerated        int
	EventsSubmitted        int
	EventsQueued           int
	EventsBuffered         int
	EventsPersistedToFile  int
	EventsUnavailable      int
	EventsRejected         int
	EventsFailed           int
	RecommendationsFetched int
	RecommendationsFailed  int
	AdsRecommended         int
	StartTime              time.Time
	EndTime                time.Time
	Duration               time.Duration
}
