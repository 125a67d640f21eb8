package otp

import (
	"context"
	"time"
)

// Record is one outstanding verification code. ExpiresAt is absolute
// wall-clock, not sliding.
type Record struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is the time-indexed key-value capability backing the verifier.
// Implementations keep at most one record per email (Put overwrites) and
// evict entries on their own schedule; the verifier enforces the logical
// expiry carried inside the record.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, email string) (Record, bool, error)
	Delete(ctx context.Context, email string) error
}
