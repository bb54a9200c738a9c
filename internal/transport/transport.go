// Package transport is the chat-network capability the relay runs on: resolving
// chats, receiving events and sending text, media and media groups.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/event"
)

var ErrNotFound = errors.New("chat not found")

// RateLimitedError asks the caller to wait RetryAfter before trying again.
type RateLimitedError struct {
	Method     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited, retry after %s", e.Method, e.RetryAfter)
}

// AsRateLimited unwraps a RateLimitedError, if err carries one.
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// APIError is any other non-ok answer from the chat network.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Method, e.Code, e.Description)
}

// Receipt lists the message ids created at the destination.
type Receipt struct {
	MessageIDs []int64
}

type Resolver interface {
	Resolve(ctx context.Context, ref string) (event.Handle, error)
}

// Receiver streams deliveries from sources until ctx is done, then closes the channel.
type Receiver interface {
	Receive(ctx context.Context, sources []event.Handle) (<-chan event.Delivery, error)
}

type Sender interface {
	SendText(ctx context.Context, dest event.Handle, text string) (Receipt, error)
	SendMedia(ctx context.Context, dest event.Handle, media event.Media, caption string) (Receipt, error)
	SendGroup(ctx context.Context, dest event.Handle, media []event.Media, caption string) (Receipt, error)
}

type Transport interface {
	Resolver
	Receiver
	Sender
}
