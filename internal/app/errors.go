package service

import "errors"

// Sentinel errors returned by the reporting facade and the service.
var (
	ErrInvalidActivity  = errors.New("invalid activity id")
	ErrActivityNotFound = errors.New("activity not found")
	ErrNotStarted       = errors.New("service not started")
	ErrStopped          = errors.New("service stopped")
)
