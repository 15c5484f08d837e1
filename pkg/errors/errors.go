package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents navigation/network errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeTimeout represents page or selector wait timeouts
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeExtraction represents page extraction errors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeLocation represents location selection/session errors
	ErrorTypeLocation ErrorType = "location"
	// ErrorTypeValidation represents input validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
)

// ScrapeError represents a scraping-pipeline error with context
type ScrapeError struct {
	Type    ErrorType
	Store   string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Store, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Store, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is worth retrying at the
// per-location level. Only transient network/timeout failures qualify.
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, store, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Store:   store,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(store, message string, err error) *ScrapeError {
	return New(ErrorTypeNetwork, store, message, err)
}

// NewTimeout creates a new timeout error
func NewTimeout(store, message string, err error) *ScrapeError {
	return New(ErrorTypeTimeout, store, message, err)
}

// NewExtraction creates a new extraction error
func NewExtraction(store, message string, err error) *ScrapeError {
	return New(ErrorTypeExtraction, store, message, err)
}

// NewLocation creates a new location-session error
func NewLocation(store, message string, err error) *ScrapeError {
	return New(ErrorTypeLocation, store, message, err)
}

// NewValidation creates a new validation error
func NewValidation(message string) *ScrapeError {
	return New(ErrorTypeValidation, "", message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// Retryable reports whether err (or anything it wraps) is a retryable
// ScrapeError or a deadline-class failure from the browser layer.
func Retryable(err error) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.IsRetryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
