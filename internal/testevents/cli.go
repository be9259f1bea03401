package testevents

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/okian/adrec/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "traffic_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWith(io.MultiWriter(os.Stdout, file), logger.FormatText); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ParseAdIDs parses a comma-separated list of ids ("1,2,3") or an inclusive
// range ("1-20").
func ParseAdIDs(arg string) ([]int64, error) {
	arg = strings.TrimSpace(arg)
	if from, to, ok := strings.Cut(arg, "-"); ok {
		lo, err := strconv.ParseInt(strings.TrimSpace(from), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ad range %q: %w", arg, err)
		}
		hi, err := strconv.ParseInt(strings.TrimSpace(to), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ad range %q: %w", arg, err)
		}
		if hi < lo {
			return nil, fmt.Errorf("invalid ad range %q: end before start", arg)
		}
		ids := make([]int64, 0, hi-lo+1)
		for id := lo; id <= hi; id++ {
			ids = append(ids, id)
		}
		return ids, nil
	}

	var ids []int64
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ad id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no ad ids in %q", arg)
	}
	return ids, nil
}

// ShowHelp prints usage information for the traffic tool.
func ShowHelp() {
	os.Stdout.WriteString(`Ad Traffic Generator
====================

Drives the ad service with synthetic impressions and clicks, then requests
recommendations and checks the responses.

Usage:
  go run ./cmd/test-events [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8000")
  -events int
        Number of impressions to generate (default 10000)
  -users int
        Distinct user ids (default 200)
  -ads string
        Ad ids, as a list "1,2,3" or a range "1-20" (default "1-20")
  -tenants int
        Distinct tenant ids (default 3)
  -click-ratio float
        Probability that an impression is followed by a click (default 0.15)
  -anonymous-ratio float
        Probability that an event has no user (default 0.1)
  -recommendations int
        Recommendation requests after the events (default 100)
  -limit int
        ?limit for recommendation requests (default 5)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed int
        Random seed, 0 for time based (default 0)
  -output string
        Output file for generated events (default: generated_events_RUNID.json)
  -log string
        Log file for run output (default: traffic_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/test-events -events 50000 -workers 16 -url http://localhost:8000
  go run ./cmd/test-events -ads 1,5,9 -click-ratio 0.3 -verbose
`)
}
