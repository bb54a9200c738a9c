package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleLabels(t *testing.T) {
	public := Handle{ID: -1001, Username: "lootdeals", Title: "Loot Deals"}
	assert.Equal(t, "@lootdeals", public.Tag())
	assert.Equal(t, "Loot Deals", public.DisplayName())

	private := Handle{ID: -1001234}
	assert.Equal(t, "-1001234", private.Tag())
	assert.Equal(t, "-1001234", private.DisplayName())
}

func TestDeliveryAlbum(t *testing.T) {
	origin := Handle{ID: -1009, Username: "deals"}
	d := Album([]RawEvent{
		{Origin: origin, MessageID: 12, GroupID: "g1", Media: []Media{{Kind: MediaPhoto, FileID: "b"}}},
		{Origin: origin, MessageID: 11, GroupID: "g1", Text: "Caption here", Media: []Media{{Kind: MediaPhoto, FileID: "a"}}},
		{Origin: origin, MessageID: 13, GroupID: "g1", Text: "second", Media: []Media{{Kind: MediaVideo, FileID: "c"}}},
	})

	assert.True(t, d.IsAlbum())
	assert.Equal(t, int64(11), d.First().MessageID)
	assert.Equal(t, "g1", d.GroupID())
	assert.Equal(t, "Caption here second", d.Text())
	assert.Equal(t, "Caption here", d.Caption())
	assert.Len(t, d.Media(), 3)
	assert.False(t, d.IsEmpty())
	assert.Equal(t, "https://t.me/deals/11", d.Permalink())
}

func TestDeliveryEmpty(t *testing.T) {
	d := Single(RawEvent{Origin: Handle{ID: 5}, MessageID: 1, Text: "   "})
	assert.True(t, d.IsEmpty())
	assert.False(t, d.IsAlbum())

	d = Single(RawEvent{Origin: Handle{ID: 5}, MessageID: 1, Media: []Media{{Kind: MediaDocument, FileID: "x"}}})
	assert.False(t, d.IsEmpty())
}

func TestPermalink(t *testing.T) {
	assert.Equal(t, "https://t.me/c/1234567890/7", Permalink(Handle{ID: -1001234567890}, 7))
	assert.Equal(t, "https://t.me/deals/7", Permalink(Handle{ID: -1001234567890, Username: "deals"}, 7))
	assert.Equal(t, "", Permalink(Handle{ID: 42}, 7))
}
