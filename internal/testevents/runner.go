package testevents

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/okian/adrec/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes a complete traffic run.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}

	seed := config.Seed
	if seed == 0 {
		seed = stats.StartTime.UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // synthetic traffic, not security sensitive

	logger.Get().Info(ctx, "starting ad traffic run",
		logger.String("runID", stats.RunID),
		logger.String("baseURL", config.BaseURL),
		logger.Int("events", config.NumEvents),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int64("seed", seed),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate events
	events, err := generateEvents(ctx, config, rng, stats.StartTime, stats)
	if err != nil {
		return fmt.Errorf("event generation failed: %w", err)
	}

	// Step 3: Submit events concurrently
	if err := submitEvents(ctx, config, events, stats); err != nil {
		return fmt.Errorf("event submission failed: %w", err)
	}

	// Step 4: Give the drain workers time to persist queued events
	logger.Get().Info(ctx, "waiting for events to be processed", logger.Duration("delay", ProcessingDelay))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(ProcessingDelay):
	}

	// Step 5: Request recommendations
	responses, err := fetchRecommendations(ctx, config, rng, stats)
	if err != nil {
		return fmt.Errorf("recommendation retrieval failed: %w", err)
	}

	// Step 6: Verify results
	if err := verifyResults(ctx, config, responses, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 7: Save events to file
	if err := saveEventsToFile(ctx, config, stats.RunID, events); err != nil {
		logger.Get().Warn(ctx, "failed to save events to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "traffic run completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running and logs tier status.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, strings.TrimRight(config.BaseURL, "/")+"/health")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}

	logger.Get().Info(ctx, "service is healthy",
		logger.String("queue", health.KafkaStatus),
		logger.String("buffer", health.RedisStatus))
	return nil
}

// saveEventsToFile writes the generated events as a JSON array.
func saveEventsToFile(ctx context.Context, config *Config, runID string, events []Event) error {
	if len(events) == 0 {
		return fmt.Errorf("no events to save")
	}

	filename := config.OutputFile
	if filename == "" {
		filename = "generated_events_" + runID + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), logFilePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "events saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptedRate, eventsPerSecond float64

	accepted := stats.EventsQueued + stats.EventsBuffered + stats.EventsPersistedToFile
	if stats.EventsSubmitted > 0 {
		acceptedRate = float64(accepted) / float64(stats.EventsSubmitted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.String("runID", stats.RunID),
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsQueued", stats.EventsQueued),
		logger.Int("eventsBuffered", stats.EventsBuffered),
		logger.Int("eventsFile", stats.EventsPersistedToFile),
		logger.Int("eventsUnavailable", stats.EventsUnavailable),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("recommendationsFetched", stats.RecommendationsFetched),
		logger.Int("adsRecommended", stats.AdsRecommended),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptedRate", acceptedRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
