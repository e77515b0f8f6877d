package db

import (
	"context"
)

// AccountantInterface keeps per-owner disk accounting.
//
// Bookings are per workspace: reserving the same workspace again
// replaces its booking instead of accumulating, so retried and
// restarted runs stay idempotent. Releases happen only when a
// workspace is actually removed from disk.
type AccountantInterface interface {
	// Reserve books `bytes` for the workspace against the owner's disk
	// quota, replacing any previous booking of the workspace.
	//
	// Returns
	//
	//	error: domain.ErrQuotaExceeded when the owner's bookings would
	//	exceed their limit. The owner's quota row is created with the
	//	default limit when the owner is seen for the first time.
	Reserve(ctx context.Context, ownerId string, workspace string, bytes int64) error

	// Release drops the booking of a workspace.
	//
	// A workspace without a booking is a no-op.
	Release(ctx context.Context, workspace string) error

	// Usage reports the owner's booked bytes and the limit.
	//
	// An owner without a quota row reports zero usage and the default limit.
	Usage(ctx context.Context, ownerId string) (used int64, limit int64, err error)
}
