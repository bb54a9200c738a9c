// Package event holds the inbound event types shared by the transport and the pipeline.
package event

import (
	"fmt"
	"strconv"
	"strings"
)

type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
	MediaAnimation MediaKind = "animation"
)

// Media is an attachment referenced by a transport-level file id.
type Media struct {
	Kind   MediaKind
	FileID string
}

// Handle is a resolved chat. Username and Title are optional.
type Handle struct {
	ID       int64
	Username string
	Title    string
}

// Tag is the short origin label stored with a reservation.
func (h Handle) Tag() string {
	if h.Username != "" {
		return "@" + h.Username
	}
	return strconv.FormatInt(h.ID, 10)
}

// DisplayName prefers the chat title, falling back to the tag.
func (h Handle) DisplayName() string {
	if h.Title != "" {
		return h.Title
	}
	return h.Tag()
}

// RawEvent is one inbound message. It is never mutated after the transport builds it.
type RawEvent struct {
	Origin    Handle
	MessageID int64
	Text      string
	Media     []Media
	GroupID   string
}

func (e RawEvent) HasMedia() bool {
	return len(e.Media) > 0
}

// Delivery is the unit of work for one pipeline run: a single event or a completed album.
type Delivery struct {
	Events []RawEvent
}

func Single(ev RawEvent) Delivery {
	return Delivery{Events: []RawEvent{ev}}
}

func Album(members []RawEvent) Delivery {
	return Delivery{Events: members}
}

func (d Delivery) IsAlbum() bool {
	return len(d.Events) > 1 || (len(d.Events) == 1 && d.Events[0].GroupID != "")
}

// First is the event that identifies the delivery (lowest message id for albums).
func (d Delivery) First() RawEvent {
	if len(d.Events) == 0 {
		return RawEvent{}
	}
	first := d.Events[0]
	for _, ev := range d.Events[1:] {
		if ev.MessageID < first.MessageID {
			first = ev
		}
	}
	return first
}

func (d Delivery) Origin() Handle {
	return d.First().Origin
}

func (d Delivery) GroupID() string {
	return d.First().GroupID
}

// Text joins member texts with a space; for a single event it is the body itself.
func (d Delivery) Text() string {
	if len(d.Events) == 1 {
		return d.Events[0].Text
	}
	parts := make([]string, 0, len(d.Events))
	for _, ev := range d.Events {
		if ev.Text != "" {
			parts = append(parts, ev.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Caption is the first non-empty member text.
func (d Delivery) Caption() string {
	for _, ev := range d.Events {
		if strings.TrimSpace(ev.Text) != "" {
			return ev.Text
		}
	}
	return ""
}

func (d Delivery) Media() []Media {
	var out []Media
	for _, ev := range d.Events {
		out = append(out, ev.Media...)
	}
	return out
}

func (d Delivery) HasMedia() bool {
	for _, ev := range d.Events {
		if ev.HasMedia() {
			return true
		}
	}
	return false
}

// IsEmpty reports a delivery with neither text nor media.
func (d Delivery) IsEmpty() bool {
	return strings.TrimSpace(d.Text()) == "" && !d.HasMedia()
}

// Permalink links back to the source message, if the origin can be linked at all.
func (d Delivery) Permalink() string {
	first := d.First()
	return Permalink(first.Origin, first.MessageID)
}

func Permalink(origin Handle, msgID int64) string {
	if origin.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", origin.Username, msgID)
	}
	id := strconv.FormatInt(origin.ID, 10)
	if strings.HasPrefix(id, "-100") {
		return fmt.Sprintf("https://t.me/c/%s/%d", strings.TrimPrefix(id, "-100"), msgID)
	}
	return ""
}
