// Package registry resolves the configured source and destination chats once at startup.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/event"
	"github.com/SWAYAM31220/lootspy/internal/log"
	"github.com/SWAYAM31220/lootspy/internal/transport"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	ErrNoSources             = errors.New("no valid source channels")
	ErrDestinationUnresolved = errors.New("destination could not be resolved")
)

// Announcer receives one human-readable line per resolution step.
type Announcer interface {
	Announce(ctx context.Context, line string)
}

// Registry holds the resolved handles. It is read-only once Resolve returns.
type Registry struct {
	Sources     []event.Handle
	Destination event.Handle
}

var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// ResolveOne resolves ref, retrying transient failures up to attempts times in total.
// A chat the network reports as missing is not retried.
func ResolveOne(ctx context.Context, resolver transport.Resolver, ref string, attempts int) (event.Handle, error) {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(attempts-1)), ctx)
	return backoff.RetryWithData(func() (event.Handle, error) {
		h, err := resolver.Resolve(ctx, ref)
		if errors.Is(err, transport.ErrNotFound) {
			return h, backoff.Permanent(err)
		}
		return h, err
	}, b)
}

// Resolve resolves every source and the destination. Unresolvable sources are
// reported and skipped; the call fails only when none resolve or the
// destination cannot be resolved.
func Resolve(ctx context.Context, resolver transport.Resolver, sources []string, dest string, attempts int, ann Announcer, logger *log.Logger) (*Registry, error) {
	logger = logger.Named("registry")
	reg := &Registry{}
	seen := make(map[int64]bool, len(sources))

	for _, ref := range sources {
		h, err := ResolveOne(ctx, resolver, ref, attempts)
		if err != nil {
			logger.Error("Cannot access source", zap.String("source", ref), zap.Error(err))
			ann.Announce(ctx, fmt.Sprintf("❌ Cannot access source %s\n%v", ref, err))
			continue
		}
		if seen[h.ID] {
			logger.Warn("Source listed twice", zap.String("source", ref), zap.Int64("chat_id", h.ID))
			continue
		}
		seen[h.ID] = true
		reg.Sources = append(reg.Sources, h)
		logger.Info("Source resolved", zap.String("source", ref), zap.Int64("chat_id", h.ID))
		ann.Announce(ctx, fmt.Sprintf("✅ Source resolved: %s", ref))
	}

	if len(reg.Sources) == 0 {
		ann.Announce(ctx, "❌ No valid source channels. Exiting.")
		return nil, ErrNoSources
	}

	h, err := ResolveOne(ctx, resolver, dest, attempts)
	if err != nil {
		ann.Announce(ctx, fmt.Sprintf("❌ Cannot access destination %s\n%v", dest, err))
		return nil, fmt.Errorf("%w: %s: %v", ErrDestinationUnresolved, dest, err)
	}
	if seen[h.ID] {
		logger.Warn("Destination is also a source", zap.Int64("chat_id", h.ID))
	}
	reg.Destination = h

	ann.Announce(ctx, fmt.Sprintf("👀 Watching: %s", tags(reg.Sources)))
	ann.Announce(ctx, fmt.Sprintf("➡️ Forwarding to: %s", h.Tag()))
	return reg, nil
}

func tags(handles []event.Handle) []string {
	out := make([]string, len(handles))
	for i, h := range handles {
		out[i] = h.Tag()
	}
	return out
}
