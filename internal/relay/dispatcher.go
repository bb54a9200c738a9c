// Package relay sends a delivery's content to the destination chat.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/event"
	"github.com/SWAYAM31220/lootspy/internal/log"
	"github.com/SWAYAM31220/lootspy/internal/transport"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var ErrNothingToSend = errors.New("delivery has neither text nor media")

// Dispatcher picks the send call for a delivery and retries it once after a rate limit.
type Dispatcher struct {
	sender        transport.Sender
	margin        time.Duration
	onRateLimited func(*transport.RateLimitedError)
	logger        *log.Logger
}

func NewDispatcher(sender transport.Sender, margin time.Duration, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		margin: margin,
		logger: logger.Named("relay"),
	}
}

// OnRateLimited registers a hook called each time the chat network asks us to wait.
func (d *Dispatcher) OnRateLimited(fn func(*transport.RateLimitedError)) {
	d.onRateLimited = fn
}

// rateLimitWait waits whatever the last rate limit asked for, plus the margin.
type rateLimitWait struct {
	margin time.Duration
	after  time.Duration
}

func (w *rateLimitWait) NextBackOff() time.Duration { return w.after + w.margin }

func (w *rateLimitWait) Reset() { w.after = 0 }

// Relay sends the delivery to dest. A rate limit is waited out and the send retried
// exactly once; a second rate limit or any other error is returned as is.
func (d *Dispatcher) Relay(ctx context.Context, dest event.Handle, delivery event.Delivery) (transport.Receipt, error) {
	if delivery.IsEmpty() {
		return transport.Receipt{}, ErrNothingToSend
	}

	wait := &rateLimitWait{margin: d.margin}
	b := backoff.WithContext(backoff.WithMaxRetries(wait, 1), ctx)

	attempt := 0
	op := func() (transport.Receipt, error) {
		attempt++
		receipt, err := d.send(ctx, dest, delivery)
		if err == nil {
			return receipt, nil
		}
		rl, ok := transport.AsRateLimited(err)
		if !ok {
			return receipt, backoff.Permanent(err)
		}
		if d.onRateLimited != nil {
			d.onRateLimited(rl)
		}
		wait.after = rl.RetryAfter
		return receipt, err
	}
	notify := func(err error, next time.Duration) {
		d.logger.Warn("Rate limited, retrying once",
			zap.Error(err),
			zap.Duration("wait", next),
			zap.Int64("origin", delivery.Origin().ID),
		)
	}

	receipt, err := backoff.RetryNotifyWithData(op, b, notify)
	if err != nil && attempt > 1 {
		d.logger.Debug("Retry after rate limit failed", zap.Error(err))
	}
	return receipt, err
}

func (d *Dispatcher) send(ctx context.Context, dest event.Handle, delivery event.Delivery) (transport.Receipt, error) {
	media := delivery.Media()
	switch {
	case delivery.IsAlbum():
		if len(media) == 0 {
			return d.sender.SendText(ctx, dest, delivery.Text())
		}
		return d.sender.SendGroup(ctx, dest, media, delivery.Caption())
	case len(media) > 0:
		return d.sender.SendMedia(ctx, dest, media[0], delivery.Text())
	default:
		return d.sender.SendText(ctx, dest, delivery.Text())
	}
}
