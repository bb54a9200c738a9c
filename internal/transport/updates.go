package transport

import (
	"context"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/event"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type tgChat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Username string `json:"username"`
}

func (c tgChat) handle() event.Handle {
	return event.Handle{ID: c.ID, Username: c.Username, Title: c.Title}
}

type tgFile struct {
	FileID string `json:"file_id"`
}

type tgMessage struct {
	MessageID    int64    `json:"message_id"`
	Chat         tgChat   `json:"chat"`
	Text         string   `json:"text"`
	Caption      string   `json:"caption"`
	MediaGroupID string   `json:"media_group_id"`
	Photo        []tgFile `json:"photo"`
	Video        *tgFile  `json:"video"`
	Animation    *tgFile  `json:"animation"`
	Document     *tgFile  `json:"document"`
}

type tgUpdate struct {
	UpdateID    int64      `json:"update_id"`
	Message     *tgMessage `json:"message"`
	ChannelPost *tgMessage `json:"channel_post"`
}

func (u tgUpdate) message() *tgMessage {
	if u.ChannelPost != nil {
		return u.ChannelPost
	}
	return u.Message
}

func (m *tgMessage) rawEvent() event.RawEvent {
	ev := event.RawEvent{
		Origin:    m.Chat.handle(),
		MessageID: m.MessageID,
		Text:      m.Text,
		GroupID:   m.MediaGroupID,
	}
	if ev.Text == "" {
		ev.Text = m.Caption
	}
	switch {
	case len(m.Photo) > 0:
		// Sizes are ascending; forward the largest.
		ev.Media = []event.Media{{Kind: event.MediaPhoto, FileID: m.Photo[len(m.Photo)-1].FileID}}
	case m.Video != nil:
		ev.Media = []event.Media{{Kind: event.MediaVideo, FileID: m.Video.FileID}}
	case m.Animation != nil:
		ev.Media = []event.Media{{Kind: event.MediaAnimation, FileID: m.Animation.FileID}}
	case m.Document != nil:
		ev.Media = []event.Media{{Kind: event.MediaDocument, FileID: m.Document.FileID}}
	}
	return ev
}

// Receive long-polls getUpdates and emits events from the given sources. Album
// members are held until AlbumWait passes without a new member.
func (c *BotClient) Receive(ctx context.Context, sources []event.Handle) (<-chan event.Delivery, error) {
	watched := make(map[int64]bool, len(sources))
	for _, s := range sources {
		watched[s.ID] = true
	}
	out := make(chan event.Delivery)
	albums := newAlbumCollector(ctx, c.albumWait, out, c.logger)

	go func() {
		defer close(out)
		defer albums.stop()

		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 0
		bo.MaxInterval = time.Minute
		var offset int64

		for ctx.Err() == nil {
			var updates []tgUpdate
			err := c.call(ctx, "getUpdates", map[string]interface{}{
				"offset":          offset,
				"timeout":         int(c.pollTimeout.Seconds()),
				"allowed_updates": []string{"message", "channel_post"},
			}, &updates)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				wait := bo.NextBackOff()
				if rl, ok := AsRateLimited(err); ok {
					wait = rl.RetryAfter
				}
				c.logger.Warn("getUpdates failed", zap.Error(err), zap.Duration("retry_in", wait))
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return
				}
				continue
			}
			bo.Reset()

			for _, u := range updates {
				if u.UpdateID >= offset {
					offset = u.UpdateID + 1
				}
				m := u.message()
				if m == nil || !watched[m.Chat.ID] {
					continue
				}
				ev := m.rawEvent()
				if ev.GroupID != "" {
					albums.add(ev)
					continue
				}
				select {
				case out <- event.Single(ev):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
