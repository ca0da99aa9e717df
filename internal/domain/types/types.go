// Package types contains common types used across the application
package types

import "github.com/okian/levelup/internal/domain/model"

// ReportResponse is returned after a synchronous report was applied.
type ReportResponse struct {
	Record           model.Record `json:"record"`
	LevelsGained     int          `json:"levels_gained"`
	ExperienceGained int          `json:"experience_gained"`
}

// EventAck acknowledges an asynchronous report.
type EventAck struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

// ActivityResponse carries the stored entry of one activity.
type ActivityResponse struct {
	ActivityID string              `json:"activity_id"`
	Entry      model.ActivityEntry `json:"entry"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
