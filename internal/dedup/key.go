// Package dedup derives canonical deduplication keys and day buckets from event content.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/event"
)

// Key is an opaque deduplication key: "source:<provider>_<id>" or "text:<hash>".
type Key string

const (
	sourcePrefix = "source:"
	textPrefix   = "text:"
	albumPrefix  = "album_"
)

var (
	urlPattern        = regexp.MustCompile(`(?i)https?://[^\s<>"']+`)
	nonWord           = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	trailingPunct     = ".,;:!?)]}'\"»…"
	asinPathPattern   = regexp.MustCompile(`(?i)/(?:dp|gp/product|gp/aw/d|exec/obidos/asin|o/asin)/([A-Z0-9]{10})(?:[/?#]|$)`)
	asinValuePattern  = regexp.MustCompile(`(?i)^[A-Z0-9]{10}$`)
	pidValuePattern   = regexp.MustCompile(`(?i)^[A-Z0-9]{8,20}$`)
	itemIDPathPattern = regexp.MustCompile(`/p/(itm[a-z0-9]{8,20})(?:[/?#]|$)`)
)

// Provider extracts a structured product id from a parsed URL.
type Provider struct {
	Name    string
	Extract func(u *url.URL) (string, bool)
}

// Providers are tried in this order for every URL; the order is part of the key contract.
var Providers = []Provider{
	{Name: "amazonlike", Extract: extractASIN},
	{Name: "flipkartlike", Extract: extractPID},
}

func extractASIN(u *url.URL) (string, bool) {
	if m := asinPathPattern.FindStringSubmatch(u.EscapedPath()); m != nil {
		return strings.ToUpper(m[1]), true
	}
	if v := u.Query().Get("asin"); asinValuePattern.MatchString(v) {
		return strings.ToUpper(v), true
	}
	return "", false
}

func extractPID(u *url.URL) (string, bool) {
	if v := u.Query().Get("pid"); pidValuePattern.MatchString(v) {
		return strings.ToUpper(v), true
	}
	if m := itemIDPathPattern.FindStringSubmatch(u.EscapedPath()); m != nil {
		return strings.ToUpper(m[1]), true
	}
	return "", false
}

// ExtractURLs returns every http(s) URL in body with trailing punctuation removed.
func ExtractURLs(body string) []string {
	raw := urlPattern.FindAllString(body, -1)
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimRight(u, trailingPunct)
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// SourceKey returns the first provider match over the URLs in body.
func SourceKey(body string) (Key, bool) {
	for _, raw := range ExtractURLs(body) {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		for _, p := range Providers {
			if id, ok := p.Extract(u); ok {
				return Key(sourcePrefix + p.Name + "_" + id), true
			}
		}
	}
	return "", false
}

// Normalize lowercases, collapses non-word runs to one space and trims.
func Normalize(body string) string {
	return strings.TrimSpace(nonWord.ReplaceAllString(strings.ToLower(body), " "))
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// DeriveKey is pure: the same inputs always give the same key.
func DeriveKey(body string, hasMedia bool, originID, msgID int64) Key {
	if k, ok := SourceKey(body); ok {
		return k
	}
	norm := Normalize(body)
	if norm == "" && hasMedia {
		norm = fmt.Sprintf("media_only_%d_%d", originID, msgID)
	}
	return Key(textPrefix + hashText(norm))
}

// DeriveAlbumKey keys a whole album. body is the space-joined member texts.
func DeriveAlbumKey(body string, hasMedia bool, originID int64, groupID string) Key {
	if k, ok := SourceKey(body); ok {
		return k
	}
	norm := Normalize(body)
	if norm == "" && hasMedia {
		norm = fmt.Sprintf("media_only_%d_%s", originID, groupID)
	}
	return Key(textPrefix + albumPrefix + hashText(norm))
}

// ForDelivery picks the single-event or album rule.
func ForDelivery(d event.Delivery) Key {
	first := d.First()
	if d.IsAlbum() {
		return DeriveAlbumKey(d.Text(), d.HasMedia(), first.Origin.ID, first.GroupID)
	}
	return DeriveKey(first.Text, first.HasMedia(), first.Origin.ID, first.MessageID)
}

// Bucket is a UTC calendar date, formatted YYYY-MM-DD.
type Bucket string

const bucketLayout = "2006-01-02"

func BucketOf(t time.Time) Bucket {
	return Bucket(t.UTC().Format(bucketLayout))
}

func (b Bucket) Time() (time.Time, error) {
	return time.Parse(bucketLayout, string(b))
}

// End is the first instant after the bucket.
func (b Bucket) End() (time.Time, error) {
	t, err := b.Time()
	if err != nil {
		return time.Time{}, err
	}
	return t.AddDate(0, 0, 1), nil
}
