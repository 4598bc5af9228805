package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrModelNotConfigured = errors.New("generation model not configured")
	ErrJobNotStoppable    = errors.New("job is not processing")
	ErrQueueFull          = errors.New("processing queue is full")
	ErrEmptyArchive       = errors.New("nothing to archive")
)
