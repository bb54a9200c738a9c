package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestDeriveKey_ProductURL(t *testing.T) {
	key := DeriveKey("Check this: https://shop.example.com/dp/B0ABCDEFGH deal!", false, 1, 1)
	assert.Equal(t, Key("source:amazonlike_B0ABCDEFGH"), key)
}

func TestDeriveKey_SchemeCaseInsensitive(t *testing.T) {
	upper := DeriveKey("Deal HTTPS://www.amazon.in/dp/B0ABCDEFGH", false, 1, 1)
	lower := DeriveKey("Deal https://www.amazon.in/dp/B0ABCDEFGH", false, 2, 2)
	assert.Equal(t, Key("source:amazonlike_B0ABCDEFGH"), upper)
	assert.Equal(t, lower, upper)
	assert.Equal(t, []string{"Http://a.example/x"}, ExtractURLs("see Http://a.example/x."))
}

func TestDeriveKey_TextHash(t *testing.T) {
	key := DeriveKey("50% off today only", false, 1, 1)
	assert.Equal(t, Key("text:"+sha("50 off today only")), key)
}

func TestDeriveKey_CaseAndPunctuationInsensitive(t *testing.T) {
	a := DeriveKey("Great Deal!!", false, 100, 1)
	b := DeriveKey("great deal", false, 200, 9)
	assert.Equal(t, a, b)
}

func TestDeriveKey_MediaOnly(t *testing.T) {
	key := DeriveKey("", true, 42, 7)
	assert.Equal(t, Key("text:"+sha("media_only_42_7")), key)
	assert.NotEqual(t, key, DeriveKey("", true, 42, 8))
	assert.NotEqual(t, key, DeriveKey("", true, 43, 7))
}

func TestDeriveKey_EmptyWithoutMedia(t *testing.T) {
	assert.Equal(t, Key("text:"+sha("")), DeriveKey(" !! ", false, 1, 2))
}

func TestDeriveKey_Deterministic(t *testing.T) {
	body := "Flash sale https://www.flipkart.com/some-phone/p/itm123?pid=MOBGTAGPTB3VS24W&lid=x."
	first := DeriveKey(body, true, 3, 4)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DeriveKey(body, true, 3, 4))
	}
	assert.Equal(t, Key("source:flipkartlike_MOBGTAGPTB3VS24W"), first)
}

func TestDeriveKey_URLTakesPrecedenceOverCaption(t *testing.T) {
	a := DeriveKey("Lowest ever!! https://amzn.example/dp/B0ABCDEFGH", false, 1, 1)
	b := DeriveKey("grab fast (https://shop.example.com/gp/product/b0abcdefgh)", false, 2, 2)
	assert.Equal(t, a, b)
}

func TestDeriveKey_ProviderOrder(t *testing.T) {
	// The first URL decides when both providers would match.
	body := "https://x.example/item?pid=MOBGTAGPTB3VS24W https://y.example/dp/B0ABCDEFGH"
	assert.Equal(t, Key("source:flipkartlike_MOBGTAGPTB3VS24W"), DeriveKey(body, false, 1, 1))

	// Within one URL the amazonlike pattern is tried first.
	body = "https://z.example/dp/B0ABCDEFGH?pid=MOBGTAGPTB3VS24W"
	assert.Equal(t, Key("source:amazonlike_B0ABCDEFGH"), DeriveKey(body, false, 1, 1))
}

func TestDeriveKey_UnrecognisedURLFallsBackToText(t *testing.T) {
	key := DeriveKey("See https://example.com/blog/post", false, 1, 1)
	assert.Equal(t, Key("text:"+sha("see https example com blog post")), key)
}

func TestExtractURLs(t *testing.T) {
	urls := ExtractURLs(`Go (https://a.example/x). Or "https://b.example/y?z=1", now!`)
	assert.Equal(t, []string{"https://a.example/x", "https://b.example/y?z=1"}, urls)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "50 off today only", Normalize("50% OFF — today,   only!!"))
	assert.Equal(t, "día de ofertas", Normalize("¡Día de OFERTAS!"))
	assert.Equal(t, "snake_case ok", Normalize("snake_case ok"))
}

func TestDeriveAlbumKey(t *testing.T) {
	key := DeriveAlbumKey("Great Deal!! second photo", true, 1, "g1")
	assert.Equal(t, Key("text:album_"+sha("great deal second photo")), key)

	mediaOnly := DeriveAlbumKey("", true, 42, "g9")
	assert.Equal(t, Key("text:album_"+sha("media_only_42_g9")), mediaOnly)

	withURL := DeriveAlbumKey("cap https://s.example/dp/B0ABCDEFGH", true, 1, "g1")
	assert.Equal(t, Key("source:amazonlike_B0ABCDEFGH"), withURL)
}

func TestForDelivery(t *testing.T) {
	origin := event.Handle{ID: 42}
	single := event.Single(event.RawEvent{Origin: origin, MessageID: 7, Media: []event.Media{{Kind: event.MediaPhoto, FileID: "f"}}})
	assert.Equal(t, DeriveKey("", true, 42, 7), ForDelivery(single))

	album := event.Album([]event.RawEvent{
		{Origin: origin, MessageID: 8, GroupID: "g", Text: "Great Deal!!", Media: []event.Media{{Kind: event.MediaPhoto, FileID: "a"}}},
		{Origin: origin, MessageID: 9, GroupID: "g", Media: []event.Media{{Kind: event.MediaPhoto, FileID: "b"}}},
	})
	assert.Equal(t, Key("text:album_"+sha("great deal")), ForDelivery(album))
}

func TestBucket(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	b := BucketOf(time.Date(2026, 10, 20, 2, 0, 0, 0, loc))
	assert.Equal(t, Bucket("2026-10-19"), b)

	start, err := b.Time()
	require.NoError(t, err)
	end, err := b.End()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}
