package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
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
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
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

// getJSON fetches url and decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, body)
	}
	return json.Unmarshal(body, v)
}

// fetchProgress reads the progress record.
func fetchProgress(ctx context.Context, client *HTTPClient, baseURL string) (model.Record, error) {
	var rec model.Record
	if err := client.getJSON(ctx, baseURL+"/progress", &rec); err != nil {
		return model.Record{}, fmt.Errorf("fetch progress: %w", err)
	}
	return rec, nil
}

// fetchStats reads the service counters.
func fetchStats(ctx context.Context, client *HTTPClient, baseURL string) (ServiceStats, error) {
	var st ServiceStats
	if err := client.getJSON(ctx, baseURL+"/stats", &st); err != nil {
		return ServiceStats{}, fmt.Errorf("fetch stats: %w", err)
	}
	return st, nil
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// submitEvents submits events concurrently using a worker pool. The
// accepted events are returned so the caller can predict their effect.
func submitEvents(ctx context.Context, config *Config, events []Event, stats *Stats) ([]Event, error) {
	log := logger.Get()
	log.Info(ctx, "submitting events", logger.Int("events", len(events)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/events"

	var (
		successful atomic.Int64
		duplicate  atomic.Int64
		failed     atomic.Int64
		submitted  atomic.Int64

		mu       sync.Mutex
		accepted []Event
	)

	eventChan := make(chan Event, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < max(config.Workers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range eventChan {
				result := submitSingleEvent(ctx, client, url, event)
				n := submitted.Add(1)
				switch result {
				case resultAccepted:
					successful.Add(1)
					mu.Lock()
					accepted = append(accepted, event)
					mu.Unlock()
				case resultDuplicate:
					duplicate.Add(1)
				default:
					failed.Add(1)
				}
				if config.Verbose && n%100 == 0 {
					log.Debug(ctx, "submission progress",
						logger.Int64("submitted", n),
						logger.Int("total", len(events)),
						logger.Int64("accepted", successful.Load()),
						logger.Int64("duplicate", duplicate.Load()),
						logger.Int64("failed", failed.Load()))
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
	stats.EventsSuccessful = int(successful.Load())
	stats.EventsDuplicate = int(duplicate.Load())
	stats.EventsFailed = int(failed.Load())

	log.Info(ctx, "event submission completed",
		logger.Int("accepted", stats.EventsSuccessful),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("failed", stats.EventsFailed))

	if err := ctx.Err(); err != nil {
		return accepted, fmt.Errorf("submission interrupted: %w", err)
	}
	return accepted, nil
}

// submitSingleEvent submits one event, retrying while the service pushes
// back, and classifies the response.
func submitSingleEvent(ctx context.Context, client *HTTPClient, url string, event Event) string {
	for attempt := 1; ; attempt++ {
		resp, err := client.Post(ctx, url, event)
		if err != nil {
			return resultFailed
		}
		body, err := readResponseBody(resp)
		if err != nil {
			return resultFailed
		}

		switch resp.StatusCode {
		case StatusAccepted:
			return resultAccepted
		case StatusOK:
			var ack AckResponse
			if err := json.Unmarshal(body, &ack); err == nil && !ack.Duplicate {
				return resultAccepted
			}
			return resultDuplicate
		case StatusTooManyRequests:
			if attempt >= MaxSubmitAttempts {
				return resultFailed
			}
			select {
			case <-ctx.Done():
				return resultFailed
			case <-time.After(RetryBackoff * time.Duration(attempt)):
			}
		default:
			return resultFailed
		}
	}
}
