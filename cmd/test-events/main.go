package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/adrec/internal/testevents"
)

// Default configuration constants.
const (
	defaultNumEvents       = 10000
	defaultUsers           = 200
	defaultAds             = "1-20"
	defaultTenants         = 3
	defaultClickRatio      = 0.15
	defaultAnonymousRatio  = 0.1
	defaultRecommendations = 100
	defaultLimit           = 5
	defaultWorkers         = 2 // multiplier for runtime.NumCPU()
	defaultTimeout         = 30 * time.Second
	defaultRunTimeout      = 10 * time.Minute
)

func main() {
	var (
		baseURL         = flag.String("url", "http://localhost:8000", "Base URL of the service")
		numEvents       = flag.Int("events", defaultNumEvents, "Number of impressions to generate")
		users           = flag.Int("users", defaultUsers, "Distinct user ids")
		ads             = flag.String("ads", defaultAds, "Ad ids: list 1,2,3 or range 1-20")
		tenants         = flag.Int("tenants", defaultTenants, "Distinct tenant ids")
		clickRatio      = flag.Float64("click-ratio", defaultClickRatio, "Probability of a click after an impression")
		anonymousRatio  = flag.Float64("anonymous-ratio", defaultAnonymousRatio, "Probability of an event without user")
		recommendations = flag.Int("recommendations", defaultRecommendations, "Recommendation requests after the events")
		limit           = flag.Int("limit", defaultLimit, "?limit for recommendation requests")
		workers         = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout         = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed            = flag.Int64("seed", 0, "Random seed, 0 for time based")
		outputFile      = flag.String("output", "", "Output file for generated events (default: generated_events_RUNID.json)")
		logFile         = flag.String("log", "", "Log file for run output (default: traffic_log_TIMESTAMP.log)")
		verbose         = flag.Bool("verbose", false, "Enable verbose logging")
		help            = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}

	if err := testevents.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	adIDs, err := testevents.ParseAdIDs(*ads)
	if err != nil {
		os.Stderr.WriteString("Invalid -ads: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &testevents.Config{
		BaseURL:         *baseURL,
		NumEvents:       *numEvents,
		Users:           *users,
		Ads:             adIDs,
		Tenants:         *tenants,
		ClickRatio:      *clickRatio,
		AnonymousRatio:  *anonymousRatio,
		Recommendations: *recommendations,
		Limit:           *limit,
		Workers:         *workers,
		Timeout:         *timeout,
		Seed:            *seed,
		OutputFile:      *outputFile,
		LogFile:         *logFile,
		Verbose:         *verbose,
	}

	if err := testevents.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel is called explicitly above
	}
}
