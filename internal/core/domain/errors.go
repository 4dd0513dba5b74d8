package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrColumnNotFound indicates a required column is missing from the source table
	ErrColumnNotFound = errors.New("column not found")

	// ErrDuplicateID indicates two corpus rows resolved to the same record ID
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrIndexProvisioning indicates the index could not be created or populated
	ErrIndexProvisioning = errors.New("index provisioning failed")

	// ErrModelService indicates the language model call failed
	ErrModelService = errors.New("model service error")

	// ErrLockNotAcquired indicates another instance holds the provisioning lock
	ErrLockNotAcquired = errors.New("lock not acquired")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates an external service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
