// Package bridge implements the outbound half of the transport boundary.
// The chat platform itself is reached through a small external bridge
// process; this package gives the pipeline an HTTP file fetcher for photo
// references and a webhook notifier that posts verdict messages back to the
// bridge for delivery into the chat.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/rs/zerolog"
)

// maxImageBytes caps downloaded receipt photos.
const maxImageBytes = 10 << 20

// HTTPFetcher downloads receipt images. Photo references arriving on the
// ingest endpoint are pre-signed URLs produced by the bridge.
type HTTPFetcher struct {
	http *http.Client
}

// NewHTTPFetcher constructs a fetcher with the given per-download timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{http: &http.Client{Timeout: timeout}}
}

// Fetch downloads the image behind ref.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %q: status %d", ref, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}
	name := path.Base(req.URL.Path)
	if name == "" || name == "/" || name == "." {
		name = "receipt.jpg"
	}
	return data, name, nil
}

// Notifier posts verdict messages and reactions to the bridge, which relays
// them into the group chat and handles the auto-delete TTL.
type Notifier struct {
	endpoint string
	http     *http.Client
	log      zerolog.Logger
}

// NewNotifier constructs a Notifier for the bridge callback endpoint.
func NewNotifier(endpoint string, log zerolog.Logger) *Notifier {
	return &Notifier{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

type replyRequest struct {
	ChatID     int64  `json:"chat_id"`
	ReplyTo    int64  `json:"reply_to,omitempty"`
	Text       string `json:"text"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type replyResponse struct {
	MessageID int64 `json:"message_id"`
}

type reactRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

// Reply posts a message into the chat and returns the bridge-assigned
// message id.
func (n *Notifier) Reply(ctx context.Context, chatID, replyTo int64, text string, ttl time.Duration) (int64, error) {
	var resp replyResponse
	err := n.post(ctx, "/reply", replyRequest{
		ChatID:     chatID,
		ReplyTo:    replyTo,
		Text:       text,
		TTLSeconds: int64(ttl.Seconds()),
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.MessageID, nil
}

// React attaches an emoji reaction to a chat message.
func (n *Notifier) React(ctx context.Context, chatID, messageID int64, emoji string) error {
	return n.post(ctx, "/react", reactRequest{ChatID: chatID, MessageID: messageID, Emoji: emoji}, nil)
}

// Exists probes whether a chat message is still present.
func (n *Notifier) Exists(ctx context.Context, chatID, messageID int64) (bool, error) {
	var resp existsResponse
	err := n.post(ctx, "/exists", reactRequest{ChatID: chatID, MessageID: messageID}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (n *Notifier) post(ctx context.Context, route string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint+route, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge %s: status %d", route, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
}

// LogNotifier is the fallback Notifier when no bridge endpoint is
// configured: verdicts go to the log and every message is treated as still
// present.
type LogNotifier struct {
	Log zerolog.Logger
}

func (l *LogNotifier) Reply(_ context.Context, chatID, replyTo int64, text string, ttl time.Duration) (int64, error) {
	l.Log.Info().Int64("chat_id", chatID).Int64("reply_to", replyTo).Dur("ttl", ttl).Str("text", text).Msg("verdict (no bridge configured)")
	return 0, nil
}

func (l *LogNotifier) React(_ context.Context, chatID, messageID int64, emoji string) error {
	l.Log.Debug().Int64("chat_id", chatID).Int64("message_id", messageID).Str("emoji", emoji).Msg("reaction (no bridge configured)")
	return nil
}

func (l *LogNotifier) Exists(context.Context, int64, int64) (bool, error) {
	return true, nil
}
