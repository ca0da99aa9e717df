package testevents

import "time"

// HTTP status code constants.
const (
	StatusOK              = 200
	StatusAccepted        = 202
	StatusTooManyRequests = 429
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	MaxSubmitAttempts       = 5
	RetryBackoff            = 20 * time.Millisecond
)

// Runner configuration constants.
const (
	DrainPollInterval    = 100 * time.Millisecond
	PercentageMultiplier = 100
)

// Submission outcomes.
const (
	resultAccepted  = "accepted"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
)
