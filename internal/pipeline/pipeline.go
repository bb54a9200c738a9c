// Package pipeline runs each delivery through reserve, relay and, on failure, release.
//
// The reservation store's unique (key, bucket) constraint is the only thing that
// decides which of several concurrent runs forwards a deal. There is no in-process
// cache or lock in front of it.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/dedup"
	"github.com/SWAYAM31220/lootspy/internal/event"
	"github.com/SWAYAM31220/lootspy/internal/log"
	"github.com/SWAYAM31220/lootspy/internal/store"
	"github.com/SWAYAM31220/lootspy/internal/transport"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Outcome string

const (
	Forwarded        Outcome = "forwarded"
	DuplicateSkipped Outcome = "duplicate"
	EmptySkipped     Outcome = "empty"
	ReservationError Outcome = "reservation_error"
	RelayFailed      Outcome = "relay_failed"
)

// Result is what one run reports to the observability sink.
type Result struct {
	RunID     string
	Outcome   Outcome
	Origin    event.Handle
	MessageID int64
	GroupID   string
	Media     bool
	Key       dedup.Key
	Bucket    dedup.Bucket
	RowID     int64
	Permalink string
	Receipt   transport.Receipt
	Err       error
	// RollbackErr is set when a failed relay could not release its reservation.
	RollbackErr error
	Duration    time.Duration
}

type Relayer interface {
	Relay(ctx context.Context, dest event.Handle, d event.Delivery) (transport.Receipt, error)
}

type Reporter interface {
	Report(ctx context.Context, r Result)
}

type Pipeline struct {
	store    store.Reservations
	relay    Relayer
	dest     event.Handle
	reporter Reporter
	logger   *log.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

func New(reservations store.Reservations, relay Relayer, dest event.Handle, reporter Reporter, logger *log.Logger) *Pipeline {
	return &Pipeline{
		store:    reservations,
		relay:    relay,
		dest:     dest,
		reporter: reporter,
		logger:   logger.Named("pipeline"),
		now:      time.Now,
	}
}

// Run starts one run per delivery and returns once deliveries is closed and every
// run has finished.
func (p *Pipeline) Run(ctx context.Context, deliveries <-chan event.Delivery) {
	for d := range deliveries {
		p.wg.Add(1)
		go func(d event.Delivery) {
			defer p.wg.Done()
			p.Process(ctx, d)
		}(d)
	}
	p.wg.Wait()
}

// Process takes a delivery to a terminal state and reports the result.
func (p *Pipeline) Process(ctx context.Context, d event.Delivery) Result {
	start := p.now()
	first := d.First()
	res := Result{
		RunID:     uuid.NewString(),
		Origin:    first.Origin,
		MessageID: first.MessageID,
		GroupID:   d.GroupID(),
		Media:     d.HasMedia(),
		Permalink: d.Permalink(),
	}
	defer func() {
		res.Duration = p.now().Sub(start)
		p.reporter.Report(ctx, res)
	}()

	// RECEIVED -> KEYED
	res.Key = dedup.ForDelivery(d)
	res.Bucket = dedup.BucketOf(start)

	// KEYED -> RESERVED | DUPLICATE
	reserved, err := p.store.TryReserve(ctx, store.Claim{
		Key:         res.Key,
		Bucket:      res.Bucket,
		DisplayName: first.Origin.DisplayName(),
		OriginTag:   first.Origin.Tag(),
	})
	if err != nil {
		res.Outcome = ReservationError
		res.Err = err
		return res
	}
	if !reserved.Reserved {
		res.Outcome = DuplicateSkipped
		return res
	}
	res.RowID = reserved.ID

	// RESERVED -> EMPTY
	if d.IsEmpty() {
		res.Outcome = EmptySkipped
		res.RollbackErr = p.release(ctx, reserved.ID)
		return res
	}

	// RESERVED -> FORWARDED | ROLLED_BACK
	receipt, err := p.relay.Relay(ctx, p.dest, d)
	if err != nil {
		res.Outcome = RelayFailed
		res.Err = err
		res.RollbackErr = p.release(ctx, reserved.ID)
		return res
	}
	res.Outcome = Forwarded
	res.Receipt = receipt
	return res
}

// release runs even when ctx is already cancelled; a reservation must never
// outlive a run that did not forward.
func (p *Pipeline) release(ctx context.Context, rowID int64) error {
	if err := p.store.Release(context.WithoutCancel(ctx), rowID); err != nil {
		p.logger.Error("Failed to release reservation, row is orphaned",
			zap.Int64("row_id", rowID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
