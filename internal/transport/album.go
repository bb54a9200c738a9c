package transport

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/event"
	"github.com/SWAYAM31220/lootspy/internal/log"

	"go.uber.org/zap"
)

type pendingAlbum struct {
	events []event.RawEvent
	timer  *time.Timer
}

// albumCollector groups events sharing a media group id and emits each group
// once it has been quiet for wait.
type albumCollector struct {
	ctx     context.Context
	wait    time.Duration
	out     chan<- event.Delivery
	logger  *log.Logger
	mu      sync.Mutex
	pending map[string]*pendingAlbum
	stopped bool
}

func newAlbumCollector(ctx context.Context, wait time.Duration, out chan<- event.Delivery, logger *log.Logger) *albumCollector {
	return &albumCollector{
		ctx:     ctx,
		wait:    wait,
		out:     out,
		logger:  logger,
		pending: make(map[string]*pendingAlbum),
	}
}

func albumKey(ev event.RawEvent) string {
	return strconv.FormatInt(ev.Origin.ID, 10) + ":" + ev.GroupID
}

func (a *albumCollector) add(ev event.RawEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	key := albumKey(ev)
	if p, ok := a.pending[key]; ok {
		p.events = append(p.events, ev)
		p.timer.Reset(a.wait)
		return
	}
	a.pending[key] = &pendingAlbum{
		events: []event.RawEvent{ev},
		timer:  time.AfterFunc(a.wait, func() { a.flush(key) }),
	}
}

func (a *albumCollector) flush(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[key]
	if !ok || a.stopped {
		return
	}
	delete(a.pending, key)
	sort.Slice(p.events, func(i, j int) bool { return p.events[i].MessageID < p.events[j].MessageID })

	select {
	case a.out <- event.Album(p.events):
	case <-a.ctx.Done():
	}
}

// stop drops albums still being collected; their members were never reserved.
func (a *albumCollector) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	for key, p := range a.pending {
		p.timer.Stop()
		a.logger.Warn("Dropping incomplete album on shutdown", zap.String("album", key), zap.Int("members", len(p.events)))
		delete(a.pending, key)
	}
}
