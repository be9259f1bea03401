package testevents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/adrec/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitEvents posts events concurrently using a worker pool.
func submitEvents(ctx context.Context, config *Config, events []Event, stats *Stats) error {
	log := logger.Get().Named("submit")
	log.Info(ctx, "submitting events", logger.Int("events", len(events)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := strings.TrimRight(config.BaseURL, "/") + "/log-event"

	var (
		submitted  atomic.Int64
		lastReport atomic.Int64
		mu         sync.Mutex
		results    = make(map[string]int)
	)

	eventChan := make(chan Event, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < maxInt(config.Workers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for event := range eventChan {
				result := submitSingleEvent(ctx, client, url, event)

				mu.Lock()
				results[result]++
				mu.Unlock()

				total := submitted.Add(1)
				now := time.Now().UnixNano()
				last := lastReport.Load()
				if config.Verbose && now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress", logger.Int64("submitted", total), logger.Int("total", len(events)))
				}
			}
		}()
	}

	go func() {
		defer close(eventChan)
		for _, event := range events {
			select {
			case <-ctx.Done():
				return
			case eventChan <- event:
			}
		}
	}()

	wg.Wait()

	stats.EventsSubmitted = int(submitted.Load())
	stats.EventsQueued = results[resultQueued]
	stats.EventsBuffered = results[resultBuffered]
	stats.EventsPersistedToFile = results[resultFile]
	stats.EventsUnavailable = results[resultUnavailable]
	stats.EventsRejected = results[resultRejected]
	stats.EventsFailed = results[resultFailed]

	log.Info(ctx, "event submission completed",
		logger.Int("queued", stats.EventsQueued),
		logger.Int("buffered", stats.EventsBuffered),
		logger.Int("file", stats.EventsPersistedToFile),
		logger.Int("unavailable", stats.EventsUnavailable),
		logger.Int("rejected", stats.EventsRejected),
		logger.Int("failed", stats.EventsFailed),
	)
	return ctx.Err()
}

// submitSingleEvent posts one event and classifies the response by the
// delivery tier named in its message.
func submitSingleEvent(ctx context.Context, client *HTTPClient, url string, event Event) string {
	resp, err := client.Post(ctx, url, event)
	if err != nil {
		return resultFailed
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return resultFailed
	}

	switch resp.StatusCode {
	case StatusOK:
		var ack LogEventResponse
		if err := json.Unmarshal(body, &ack); err != nil {
			return resultFailed
		}
		return classifyMessage(ack.Message)
	case StatusServiceUnavailable:
		return resultUnavailable
	case StatusUnprocessableEntity:
		return resultRejected
	default:
		return resultFailed
	}
}

func classifyMessage(msg string) string {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "buffer"):
		return resultBuffered
	case strings.Contains(msg, "file"):
		return resultFile
	default:
		return resultQueued
	}
}
