// Package common defines shared constants, sentinel errors and typed errors
// used across the client and server layers of drivesync. Callers should use
// errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// ErrAuthRequired is returned by every write operation when there is no
	// current identity. It is returned before any remote call is attempted.
	ErrAuthRequired = errors.New("authentication required")

	// ErrSubscriptionLost marks a live query that terminated abnormally.
	// It is distinct from an empty result set.
	ErrSubscriptionLost = errors.New("subscription lost")

	// ErrPartialCoordination marks a blob/metadata operation where one store
	// succeeded and the other failed.
	ErrPartialCoordination = errors.New("partial coordination failure")

	// ErrBlobStore wraps failures reported by the blob store.
	ErrBlobStore = errors.New("blob store error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// SubscriptionError reports the abnormal end of a live query, e.g. when the
// caller's permission to the scoped records was revoked.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to %q lost: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// Is makes every SubscriptionError match ErrSubscriptionLost.
func (e *SubscriptionError) Is(target error) bool { return target == ErrSubscriptionLost }

// PartialCoordinationError reports that a two-store operation completed only
// on one side. Nothing is rolled back or retried.
type PartialCoordinationError struct {
	// Op is the coordinated operation ("upload" or "delete").
	Op string
	// Stage names the step that failed ("metadata" or "blob").
	Stage string
	// BlobPath is the storage path that may now be orphaned.
	BlobPath string
	// RecordID is set when the metadata side succeeded.
	RecordID string
	Err      error
}

func (e *PartialCoordinationError) Error() string {
	return fmt.Sprintf("%s: %s step failed (blob %q, record %q): %v", e.Op, e.Stage, e.BlobPath, e.RecordID, e.Err)
}

func (e *PartialCoordinationError) Unwrap() error { return e.Err }

func (e *PartialCoordinationError) Is(target error) bool { return target == ErrPartialCoordination }
