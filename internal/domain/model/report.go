package model

import "time"

// ActivityResult is what an activity hands over when it completes or makes
// meaningful progress. Values are trusted only after the reporting facade
// has sanitized them.
type ActivityResult struct {
	Completed bool     `json:"completed"`
	Score     int      `json:"score"`
	Stars     int      `json:"stars"`
	Badges    []string `json:"badges"`
}

// RawResult carries an untyped producer payload, exactly as decoded from JSON.
type RawResult struct {
	Completed any `json:"completed"`
	Score     any `json:"score"`
	Stars     any `json:"stars"`
	Badges    any `json:"badges"`
}

// Entry converts a result into the entry stored under its activity id.
func (r ActivityResult) Entry() ActivityEntry {
	return ActivityEntry{
		Completed: r.Completed,
		Score:     r.Score,
		Stars:     r.Stars,
		Badges:    cloneStrings(r.Badges),
	}
}

// Report is the unit flowing through the asynchronous ingestion queue.
type Report struct {
	EventID    string         // idempotency key for the delivery
	ActivityID string         // activity identity, key of Record.PerActivity
	Result     ActivityResult // producer result, sanitized by the facade
	ReceivedAt time.Time
}
