package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/levelup/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete event test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting levelup event test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("events", config.NumEvents),
		logger.Int("activities", config.Activities),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verbose", config.Verbose))

	client := newHTTPClient(config.Timeout)

	if err := checkServiceHealth(ctx, client, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	before, err := fetchProgress(ctx, client, config.BaseURL)
	if err != nil {
		return err
	}
	baseline, err := fetchStats(ctx, client, config.BaseURL)
	if err != nil {
		return err
	}

	events, err := generateEvents(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("event generation failed: %w", err)
	}

	accepted, err := submitEvents(ctx, config, events, stats)
	if err != nil {
		return fmt.Errorf("event submission failed: %w", err)
	}

	final, err := waitForDrain(ctx, client, config, baseline)
	if err != nil {
		return fmt.Errorf("waiting for processing failed: %w", err)
	}

	after, err := fetchProgress(ctx, client, config.BaseURL)
	if err != nil {
		return err
	}
	if err := verifyResults(ctx, before, after, accepted, final.Failed-baseline.Failed, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	if config.OutputFile != "" {
		if err := saveEventsToFile(ctx, config.OutputFile, events); err != nil {
			log.Warn(ctx, "failed to save events to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	log.Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}

	// Any 200 is healthy; the body is Prometheus metrics.
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// waitForDrain polls /stats until every report accepted since baseline was
// processed or failed.
func waitForDrain(ctx context.Context, client *HTTPClient, config *Config, baseline ServiceStats) (ServiceStats, error) {
	logger.Get().Info(ctx, "waiting for events to be processed")

	ctx, cancel := context.WithTimeout(ctx, config.WaitTimeout)
	defer cancel()

	ticker := time.NewTicker(DrainPollInterval)
	defer ticker.Stop()

	for {
		st, err := fetchStats(ctx, client, config.BaseURL)
		if err == nil && st.Settled()-baseline.Settled() >= st.Accepted-baseline.Accepted {
			return st, nil
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return ServiceStats{}, err
			}
			return ServiceStats{}, fmt.Errorf("%d of %d accepted reports settled: %w",
				st.Settled()-baseline.Settled(), st.Accepted-baseline.Accepted, ctx.Err())
		case <-ticker.C:
		}
	}
}

// saveEventsToFile writes the generated events as a JSON array.
func saveEventsToFile(ctx context.Context, filename string, events []Event) error {
	if len(events) == 0 {
		return fmt.Errorf("no events to save")
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), logFilePermission); err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}

	logger.Get().Info(ctx, "events saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, eventsPerSecond float64

	if stats.EventsSubmitted > 0 {
		successRate = float64(stats.EventsSuccessful) / float64(stats.EventsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsAccepted", stats.EventsSuccessful),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("expectedExperience", stats.ExpectedGain),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptedRate", successRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
