package store

import (
	"context"
	"errors"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/dedup"
)

// ErrStoreUnavailable is returned when the store is short-circuited after repeated failures.
var ErrStoreUnavailable = errors.New("reservation store unavailable")

// Claim is what a run asks the store to reserve.
type Claim struct {
	Key         dedup.Key
	Bucket      dedup.Bucket
	DisplayName string
	OriginTag   string
}

// Reservation is a persisted claim on (Key, Bucket).
type Reservation struct {
	ID          int64
	Key         dedup.Key
	Bucket      dedup.Bucket
	DisplayName string
	OriginTag   string
	CreatedAt   time.Time
}

// ReserveResult has exactly two shapes: Reserved(id) or Duplicate.
type ReserveResult struct {
	Reserved bool
	ID       int64
}

func Reserved(id int64) ReserveResult {
	return ReserveResult{Reserved: true, ID: id}
}

func Duplicate() ReserveResult {
	return ReserveResult{}
}

// Reservations wraps a store's uniqueness constraint over (key, bucket).
//
// TryReserve never reports a duplicate as an error. Release is idempotent: an
// unknown or already released id is not an error. Lookup returns nil when no
// row exists.
type Reservations interface {
	TryReserve(ctx context.Context, claim Claim) (ReserveResult, error)
	Release(ctx context.Context, id int64) error
	Lookup(ctx context.Context, key dedup.Key, bucket dedup.Bucket) (*Reservation, error)
	Ping(ctx context.Context) error
}
