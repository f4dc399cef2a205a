package model

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates a bad parameter type or site mapping.
// It is fatal for the request and never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// RetrievalError indicates a timeout or transport failure on a single
// backend. The router treats it as "this backend abstained", never as
// "zero results found".
type RetrievalError struct {
	Backend string
	Err     error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed on backend %q: %v", e.Backend, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// CapacityError is the backpressure signal raised when a conversation's
// message count would exceed its queue size limit.
type CapacityError struct {
	SessionID string
	Limit     int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("conversation %s at capacity (limit %d)", e.SessionID, e.Limit)
}

// StorageError indicates a persistence read or write failure. In-memory
// session state is never corrupted by a failed persist attempt.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

var (
	// ErrSessionNotFound is returned by a store when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoAnswer signals that every backend failed to retrieve or every
	// candidate failed to score. It is distinct from zero matches found.
	ErrNoAnswer = errors.New("no answer available")

	// ErrDuplicateSession is returned when creating a session whose ID
	// already exists in the store.
	ErrDuplicateSession = errors.New("session already exists")
)
