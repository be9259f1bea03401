package testevents

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/okian/adrec/pkg/logger"
)

// fetchRecommendations requests recommendations for random users
// concurrently and returns the successful responses.
func fetchRecommendations(ctx context.Context, config *Config, rng *rand.Rand, stats *Stats) ([]RecommendResponse, error) {
	log := logger.Get().Named("recommend")
	log.Info(ctx, "fetching recommendations", logger.Int("requests", config.Recommendations))

	client := newHTTPClient(config.Timeout)
	base := strings.TrimRight(config.BaseURL, "/")

	// Users beyond the generated range exercise the cold start path.
	users := make([]int64, config.Recommendations)
	for i := range users {
		users[i] = int64(rng.Intn(maxInt(config.Users, 1)+1) + 1)
	}

	var (
		mu        sync.Mutex
		responses []RecommendResponse
		failed    int
	)

	userChan := make(chan int64, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < maxInt(config.Workers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range userChan {
				resp, err := fetchSingle(ctx, client, base, userID, config.Limit)
				mu.Lock()
				if err != nil {
					failed++
					if config.Verbose {
						log.Warn(ctx, "recommendation failed", logger.Int64("user_id", userID), logger.Error(err))
					}
				} else {
					responses = append(responses, resp)
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(userChan)
		for _, u := range users {
			select {
			case <-ctx.Done():
				return
			case userChan <- u:
			}
		}
	}()
	wg.Wait()

	stats.RecommendationsFetched = len(responses)
	stats.RecommendationsFailed = failed
	for _, r := range responses {
		stats.AdsRecommended += len(r.Recommendations)
	}

	log.Info(ctx, "recommendations fetched",
		logger.Int("ok", stats.RecommendationsFetched),
		logger.Int("failed", stats.RecommendationsFailed),
		logger.Int("ads", stats.AdsRecommended),
	)
	return responses, ctx.Err()
}

func fetchSingle(ctx context.Context, client *HTTPClient, base string, userID int64, limit int) (RecommendResponse, error) {
	url := fmt.Sprintf("%s/recommend?user_id=%d", base, userID)
	if limit > 0 {
		url = fmt.Sprintf("%s&limit=%d", url, limit)
	}

	resp, err := client.Get(ctx, url)
	if err != nil {
		return RecommendResponse{}, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return RecommendResponse{}, err
	}
	if resp.StatusCode != StatusOK {
		return RecommendResponse{}, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out RecommendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return RecommendResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
