package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/event"
	"github.com/SWAYAM31220/lootspy/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	calls    []string
	payloads []map[string]interface{}
	handle   func(method string, payload map[string]interface{}) (int, string)
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	var payload map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()

	status, body := f.handle(method, payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeBotAPI) methodCalls(method string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]interface{}
	for i, c := range f.calls {
		if c == method {
			out = append(out, f.payloads[i])
		}
	}
	return out
}

func newTestClient(t *testing.T, f *fakeBotAPI) *BotClient {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewBotClient(BotOptions{
		APIURL:      srv.URL,
		Token:       "123:test",
		PollTimeout: time.Second,
		AlbumWait:   50 * time.Millisecond,
	}, log.NewNop())
}

var dest = event.Handle{ID: -1009999}

func TestResolve(t *testing.T) {
	f := &fakeBotAPI{handle: func(method string, p map[string]interface{}) (int, string) {
		if p["chat_id"] == "@lootdeals" {
			return 200, `{"ok":true,"result":{"id":-1001234,"type":"channel","title":"Loot Deals","username":"lootdeals"}}`
		}
		return 400, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`
	}}
	c := newTestClient(t, f)

	h, err := c.Resolve(context.Background(), "@lootdeals")
	require.NoError(t, err)
	assert.Equal(t, event.Handle{ID: -1001234, Username: "lootdeals", Title: "Loot Deals"}, h)

	_, err = c.Resolve(context.Background(), "-100777")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, float64(-100777), f.methodCalls("getChat")[1]["chat_id"])
}

func TestSendText(t *testing.T) {
	f := &fakeBotAPI{handle: func(string, map[string]interface{}) (int, string) {
		return 200, `{"ok":true,"result":{"message_id":77,"chat":{"id":-1009999}}}`
	}}
	c := newTestClient(t, f)

	r, err := c.SendText(context.Background(), dest, "hello")
	require.NoError(t, err)
	assert.Equal(t, []int64{77}, r.MessageIDs)
	p := f.methodCalls("sendMessage")[0]
	assert.Equal(t, "hello", p["text"])
	assert.Equal(t, float64(-1009999), p["chat_id"])
}

func TestSend_RateLimited(t *testing.T) {
	f := &fakeBotAPI{handle: func(string, map[string]interface{}) (int, string) {
		return 429, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`
	}}
	c := newTestClient(t, f)

	_, err := c.SendText(context.Background(), dest, "hello")
	rl, ok := AsRateLimited(err)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, rl.RetryAfter)
	assert.Equal(t, "sendMessage", rl.Method)
}

func TestSend_APIError(t *testing.T) {
	f := &fakeBotAPI{handle: func(string, map[string]interface{}) (int, string) {
		return 403, `{"ok":false,"error_code":403,"description":"Forbidden: bot is not a member of the channel chat"}`
	}}
	c := newTestClient(t, f)

	_, err := c.SendMedia(context.Background(), dest, event.Media{Kind: event.MediaPhoto, FileID: "p1"}, "cap")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Code)
	_, limited := AsRateLimited(err)
	assert.False(t, limited)
}

func TestSendMedia_MethodByKind(t *testing.T) {
	f := &fakeBotAPI{handle: func(string, map[string]interface{}) (int, string) {
		return 200, `{"ok":true,"result":{"message_id":5}}`
	}}
	c := newTestClient(t, f)

	_, err := c.SendMedia(context.Background(), dest, event.Media{Kind: event.MediaVideo, FileID: "v1"}, "")
	require.NoError(t, err)
	p := f.methodCalls("sendVideo")[0]
	assert.Equal(t, "v1", p["video"])
	_, hasCaption := p["caption"]
	assert.False(t, hasCaption)

	_, err = c.SendMedia(context.Background(), dest, event.Media{Kind: "sticker", FileID: "s"}, "")
	assert.Error(t, err)
}

func TestSendGroup_ChunksAndCaption(t *testing.T) {
	f := &fakeBotAPI{handle: func(method string, p map[string]interface{}) (int, string) {
		if method == "sendMediaGroup" {
			n := len(p["media"].([]interface{}))
			msgs := make([]string, n)
			for i := range msgs {
				msgs[i] = `{"message_id":1}`
			}
			return 200, `{"ok":true,"result":[` + strings.Join(msgs, ",") + `]}`
		}
		return 200, `{"ok":true,"result":{"message_id":2}}`
	}}
	c := newTestClient(t, f)

	media := make([]event.Media, 12)
	for i := range media {
		media[i] = event.Media{Kind: event.MediaPhoto, FileID: "f"}
	}
	media[11].Kind = event.MediaAnimation

	r, err := c.SendGroup(context.Background(), dest, media, "Album caption")
	require.NoError(t, err)
	assert.Len(t, r.MessageIDs, 12)

	groups := f.methodCalls("sendMediaGroup")
	require.Len(t, groups, 2)
	first := groups[0]["media"].([]interface{})
	assert.Len(t, first, 10)
	assert.Equal(t, "Album caption", first[0].(map[string]interface{})["caption"])
	_, captioned := first[1].(map[string]interface{})["caption"]
	assert.False(t, captioned)
	second := groups[1]["media"].([]interface{})
	assert.Equal(t, "document", second[1].(map[string]interface{})["type"])
}

func TestSendGroup_SingleItemFallsBackToMedia(t *testing.T) {
	f := &fakeBotAPI{handle: func(string, map[string]interface{}) (int, string) {
		return 200, `{"ok":true,"result":{"message_id":9}}`
	}}
	c := newTestClient(t, f)

	r, err := c.SendGroup(context.Background(), dest, []event.Media{{Kind: event.MediaPhoto, FileID: "p"}}, "cap")
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, r.MessageIDs)
	assert.Len(t, f.methodCalls("sendPhoto"), 1)
	assert.Empty(t, f.methodCalls("sendMediaGroup"))
}

func TestReceive_SinglesAndAlbums(t *testing.T) {
	var served sync.Once
	f := &fakeBotAPI{handle: func(method string, p map[string]interface{}) (int, string) {
		if method != "getUpdates" {
			return 404, `{"ok":false,"error_code":404,"description":"Not Found"}`
		}
		body := `{"ok":true,"result":[]}`
		served.Do(func() {
			body = `{"ok":true,"result":[
				{"update_id":10,"channel_post":{"message_id":1,"chat":{"id":-100111,"username":"deals"},"text":"hello"}},
				{"update_id":11,"channel_post":{"message_id":2,"chat":{"id":-100222},"text":"ignored"}},
				{"update_id":12,"channel_post":{"message_id":4,"chat":{"id":-100111},"media_group_id":"g1","photo":[{"file_id":"small"},{"file_id":"big"}]}},
				{"update_id":13,"channel_post":{"message_id":3,"chat":{"id":-100111},"media_group_id":"g1","caption":"Album!","video":{"file_id":"vid"}}}
			]}`
		})
		time.Sleep(10 * time.Millisecond)
		return 200, body
	}}
	c := newTestClient(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := c.Receive(ctx, []event.Handle{{ID: -100111}})
	require.NoError(t, err)

	single := <-ch
	require.False(t, single.IsAlbum())
	assert.Equal(t, "hello", single.Events[0].Text)
	assert.Equal(t, "deals", single.Events[0].Origin.Username)

	album := <-ch
	require.True(t, album.IsAlbum())
	require.Len(t, album.Events, 2)
	assert.Equal(t, int64(3), album.Events[0].MessageID)
	assert.Equal(t, "Album!", album.Caption())
	assert.Equal(t, []event.Media{{Kind: event.MediaVideo, FileID: "vid"}, {Kind: event.MediaPhoto, FileID: "big"}}, album.Media())

	cancel()
	for range ch {
	}

	polls := f.methodCalls("getUpdates")
	require.GreaterOrEqual(t, len(polls), 2)
	assert.Equal(t, float64(14), polls[1]["offset"])
}
