package testevents

import "time"

// Config holds configuration for the event test
type Config struct {
	BaseURL       string        // Base URL of the service
	NumEvents     int           // Number of events to generate
	Activities    int           // Number of distinct activity ids
	DuplicateRate int           // Percent of events re-sent with an earlier event id
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	WaitTimeout   time.Duration // How long to wait for the queue to drain
	OutputFile    string        // Output file for events
	LogFile       string        // Log file for test output
	Verbose       bool          // Enable verbose logging
}

// Event is the body of POST /events.
type Event struct {
	EventID    string   `json:"event_id"`
	ActivityID string   `json:"activity_id"`
	Completed  bool     `json:"completed"`
	Score      int      `json:"score"`
	Stars      int      `json:"stars"`
	Badges     []string `json:"badges"`
}

// AckResponse represents the response from event submission
type AckResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// ServiceStats is the subset of /stats the tool relies on.
type ServiceStats struct {
	Accepted   int64 `json:"accepted"`
	Duplicates int64 `json:"duplicates"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
}

// Settled reports how many accepted reports the workers have finished.
func (s ServiceStats) Settled() int64 { return s.Processed + s.Failed }

// Stats holds test statistics
type Stats struct {
	EventsGenerated  int
	EventsSubmitted  int
	EventsSuccessful int
	EventsDuplicate  int
	EventsFailed     int
	ExpectedGain     int // experience the accepted events should grant
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
