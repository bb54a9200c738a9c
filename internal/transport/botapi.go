package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/event"
	"github.com/SWAYAM31220/lootspy/internal/log"

	"go.uber.org/zap"
)

// Telegram rejects media groups larger than this.
const maxGroupSize = 10

type BotOptions struct {
	APIURL      string
	Token       string
	PollTimeout time.Duration
	AlbumWait   time.Duration
}

// BotClient implements Transport over the Telegram Bot API.
type BotClient struct {
	base        string
	http        *http.Client
	pollTimeout time.Duration
	albumWait   time.Duration
	logger      *log.Logger
}

func NewBotClient(opts BotOptions, logger *log.Logger) *BotClient {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.AlbumWait <= 0 {
		opts.AlbumWait = 1500 * time.Millisecond
	}
	return &BotClient{
		base:        strings.TrimRight(opts.APIURL, "/") + "/bot" + opts.Token,
		http:        newHTTPClient(opts.PollTimeout + 15*time.Second),
		pollTimeout: opts.PollTimeout,
		albumWait:   opts.AlbumWait,
		logger:      logger.Named("bot_api"),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (c *BotClient) call(ctx context.Context, method string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return fmt.Errorf("%s: decode response (status %d): %w", method, resp.StatusCode, err)
	}
	if !ar.OK {
		if ar.ErrorCode == http.StatusTooManyRequests {
			retry := 1
			if ar.Parameters != nil && ar.Parameters.RetryAfter > 0 {
				retry = ar.Parameters.RetryAfter
			}
			return &RateLimitedError{Method: method, RetryAfter: time.Duration(retry) * time.Second}
		}
		if ar.ErrorCode == http.StatusBadRequest && strings.Contains(strings.ToLower(ar.Description), "chat not found") {
			return fmt.Errorf("%s: %w", method, ErrNotFound)
		}
		return &APIError{Method: method, Code: ar.ErrorCode, Description: ar.Description}
	}
	if out != nil {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// chatID sends numeric references as numbers and usernames as strings.
func chatID(ref string) interface{} {
	if n, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return n
	}
	return ref
}

func (c *BotClient) Resolve(ctx context.Context, ref string) (event.Handle, error) {
	var chat tgChat
	if err := c.call(ctx, "getChat", map[string]interface{}{"chat_id": chatID(ref)}, &chat); err != nil {
		return event.Handle{}, err
	}
	return chat.handle(), nil
}

func (c *BotClient) SendText(ctx context.Context, dest event.Handle, text string) (Receipt, error) {
	var msg tgMessage
	err := c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": dest.ID,
		"text":    text,
	}, &msg)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{MessageIDs: []int64{msg.MessageID}}, nil
}

var mediaMethods = map[event.MediaKind]struct{ method, field string }{
	event.MediaPhoto:     {"sendPhoto", "photo"},
	event.MediaVideo:     {"sendVideo", "video"},
	event.MediaDocument:  {"sendDocument", "document"},
	event.MediaAnimation: {"sendAnimation", "animation"},
}

func (c *BotClient) SendMedia(ctx context.Context, dest event.Handle, media event.Media, caption string) (Receipt, error) {
	m, ok := mediaMethods[media.Kind]
	if !ok {
		return Receipt{}, fmt.Errorf("unsupported media kind %q", media.Kind)
	}
	payload := map[string]interface{}{
		"chat_id": dest.ID,
		m.field:   media.FileID,
	}
	if caption != "" {
		payload["caption"] = caption
	}
	var msg tgMessage
	if err := c.call(ctx, m.method, payload, &msg); err != nil {
		return Receipt{}, err
	}
	return Receipt{MessageIDs: []int64{msg.MessageID}}, nil
}

type inputMedia struct {
	Type    string `json:"type"`
	Media   string `json:"media"`
	Caption string `json:"caption,omitempty"`
}

// SendGroup sends media as one album, split into chunks of ten. The caption goes
// on the first item. A single item is sent as plain media.
// Chunking is not retry-safe: when a later chunk fails, earlier chunks are already
// posted and resending the whole group duplicates them.
func (c *BotClient) SendGroup(ctx context.Context, dest event.Handle, media []event.Media, caption string) (Receipt, error) {
	switch len(media) {
	case 0:
		return Receipt{}, fmt.Errorf("sendMediaGroup: no media")
	case 1:
		return c.SendMedia(ctx, dest, media[0], caption)
	}

	var receipt Receipt
	for start := 0; start < len(media); start += maxGroupSize {
		end := start + maxGroupSize
		if end > len(media) {
			end = len(media)
		}
		chunk := make([]inputMedia, 0, end-start)
		for i, m := range media[start:end] {
			kind := m.Kind
			if kind == event.MediaAnimation {
				kind = event.MediaDocument
			}
			im := inputMedia{Type: string(kind), Media: m.FileID}
			if start == 0 && i == 0 {
				im.Caption = caption
			}
			chunk = append(chunk, im)
		}
		var msgs []tgMessage
		if len(chunk) == 1 {
			r, err := c.SendMedia(ctx, dest, media[start], "")
			if err != nil {
				return receipt, err
			}
			receipt.MessageIDs = append(receipt.MessageIDs, r.MessageIDs...)
			continue
		}
		err := c.call(ctx, "sendMediaGroup", map[string]interface{}{
			"chat_id": dest.ID,
			"media":   chunk,
		}, &msgs)
		if err != nil {
			return receipt, err
		}
		for _, m := range msgs {
			receipt.MessageIDs = append(receipt.MessageIDs, m.MessageID)
		}
	}
	c.logger.Debug("Sent media group", zap.Int64("chat_id", dest.ID), zap.Int("items", len(media)))
	return receipt, nil
}
