package service

import "errors"

// Sentinel errors shared across services; handlers map them to HTTP
// statuses and the scheduler treats them as tick-local.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrInvalidSchedule = errors.New("invalid cron expression")
	ErrGeneration      = errors.New("content generation failed")
	ErrPublish         = errors.New("publish failed")
)
