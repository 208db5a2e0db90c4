package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/roomsync/internal/ledger"
)

// ServiceError is returned for requests and passes that could not complete.
//
// Slot collisions are not errors: they are resolved inside the claim loop.
type ServiceError struct {
	// Code identifies the error category.
	Code ServiceErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the record path involved, if any.
	Path ledger.RecordPath

	// Err is the underlying cause, if any.
	Err error
}

// ServiceErrorCode categorizes service errors.
type ServiceErrorCode string

const (
	// ErrCodeStoreFailure indicates the ledger or blob store failed.
	ErrCodeStoreFailure ServiceErrorCode = "STORE_FAILURE"

	// ErrCodeUnknownRoom indicates a request named a room that is not in
	// the local cache. Callers may only address rooms they have discovered.
	ErrCodeUnknownRoom ServiceErrorCode = "UNKNOWN_ROOM"

	// ErrCodeContended indicates the claim loop hit its attempt limit.
	ErrCodeContended ServiceErrorCode = "CONTENDED"

	// ErrCodeEncoding indicates a payload could not be encoded.
	ErrCodeEncoding ServiceErrorCode = "ENCODING"

	// ErrCodeQueueClosed indicates the engine stopped before handling a
	// request.
	ErrCodeQueueClosed ServiceErrorCode = "QUEUE_CLOSED"

	// ErrCodeBlocked indicates a message to a direct room whose
	// counterpart is blocked, in either direction.
	ErrCodeBlocked ServiceErrorCode = "BLOCKED"

	// ErrCodeInvalidRequest indicates a malformed request.
	ErrCodeInvalidRequest ServiceErrorCode = "INVALID_REQUEST"
)

// Error implements the error interface.
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error { return e.Err }

func hasCode(err error, code ServiceErrorCode) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsStoreFailure returns true if err is a store failure.
// Uses errors.As to handle wrapped errors.
func IsStoreFailure(err error) bool { return hasCode(err, ErrCodeStoreFailure) }

// IsUnknownRoom returns true if err names a room missing from the cache.
func IsUnknownRoom(err error) bool { return hasCode(err, ErrCodeUnknownRoom) }

// IsContended returns true if the claim loop gave up.
func IsContended(err error) bool { return hasCode(err, ErrCodeContended) }

// IsQueueClosed returns true if the engine stopped before the request ran.
func IsQueueClosed(err error) bool { return hasCode(err, ErrCodeQueueClosed) }

// IsBlocked returns true if a message was refused because of a block.
func IsBlocked(err error) bool { return hasCode(err, ErrCodeBlocked) }

func newStoreError(op string, path ledger.RecordPath, err error) *ServiceError {
	return &ServiceError{Code: ErrCodeStoreFailure, Message: op, Path: path, Err: err}
}

func newUnknownRoomError(path ledger.RecordPath) *ServiceError {
	return &ServiceError{Code: ErrCodeUnknownRoom, Message: "room is not in the local cache", Path: path}
}

func newContendedError(parent ledger.RecordPath, attempts int) *ServiceError {
	return &ServiceError{
		Code:    ErrCodeContended,
		Message: fmt.Sprintf("no free slot after %d attempts", attempts),
		Path:    parent,
	}
}

func newEncodingError(what string, err error) *ServiceError {
	return &ServiceError{Code: ErrCodeEncoding, Message: "encode " + what, Err: err}
}

func newQueueClosedError() *ServiceError {
	return &ServiceError{Code: ErrCodeQueueClosed, Message: "engine is not accepting requests"}
}

func newBlockedError(path ledger.RecordPath, counterpart ledger.Identity) *ServiceError {
	return &ServiceError{
		Code:    ErrCodeBlocked,
		Message: fmt.Sprintf("conversation with %s is blocked", counterpart),
		Path:    path,
	}
}
