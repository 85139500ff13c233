package queue

import (
	"errors"
	"fmt"
)

// Common errors returned by queue operations.
var (
	// ErrNotFound is returned when a job record does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyExists is returned when inserting a record whose ID is
	// already present. IDs are generated, so hitting this indicates a
	// programming error rather than normal operation.
	ErrAlreadyExists = errors.New("job already exists")

	// ErrJobInFlight is returned by producers when the resource already has
	// a live (pending or processing) job.
	ErrJobInFlight = errors.New("resource already has a job in flight")

	// ErrStopped is returned when enqueueing into a queue that has been
	// stopped.
	ErrStopped = errors.New("queue is stopped")
)

// AlreadyExistsError wraps ErrAlreadyExists with the offending job ID.
type AlreadyExistsError struct {
	ID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("job already exists: %s", e.ID)
}

func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// InFlightError wraps ErrJobInFlight with the existing job's identity so
// callers can point at the job that is already running.
type InFlightError struct {
	ResourceKey string
	JobID       string
}

func (e *InFlightError) Error() string {
	return fmt.Sprintf("resource %s already has job %s in flight", e.ResourceKey, e.JobID)
}

func (e *InFlightError) Unwrap() error {
	return ErrJobInFlight
}

func (e *InFlightError) Is(target error) bool {
	return target == ErrJobInFlight
}
