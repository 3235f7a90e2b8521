package domain

import "errors"

var (
	ErrNotFound          = errors.New("session not found")
	ErrQueueFull         = errors.New("download queue is full")
	ErrInvalidTransition = errors.New("invalid session status transition")
	ErrInvalidSourceRef  = errors.New("invalid source reference")
	ErrShuttingDown      = errors.New("queue is shutting down")
	// ErrFileTooLarge marks a download over Options.MaxFileSize.
	ErrFileTooLarge = errors.New("file exceeds the maximum file size")
)
