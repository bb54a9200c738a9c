package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/log"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// breakerStore short-circuits TryReserve after consecutive store failures.
// Release always goes straight to the store: a rollback must be attempted.
type breakerStore struct {
	Reservations
	cb *gobreaker.CircuitBreaker
}

func WithBreaker(inner Reservations, logger *log.Logger) Reservations {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reservations",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &breakerStore{Reservations: inner, cb: cb}
}

func (b *breakerStore) TryReserve(ctx context.Context, claim Claim) (ReserveResult, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.Reservations.TryReserve(ctx, claim)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ReserveResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err != nil {
		return ReserveResult{}, err
	}
	return res.(ReserveResult), nil
}
