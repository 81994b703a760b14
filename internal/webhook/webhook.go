// Package webhook forwards interaction events to an HTTP endpoint with
// signed payloads and retries.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sendrec/ivplayer/internal/database"
	"github.com/sendrec/ivplayer/internal/events"
)

const (
	maxResponseBodyBytes = 1024
	queueSize            = 256
)

type Event struct {
	Name      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// FromInteraction maps a session event onto the webhook payload.
func FromInteraction(e events.Event) Event {
	return Event{
		Name:      "interaction." + e.Kind,
		Timestamp: e.At,
		Data: map[string]any{
			"sessionId":     e.SessionID,
			"videoId":       e.VideoID,
			"interactionId": e.InteractionID,
			"second":        e.Second,
		},
	}
}

// Client dispatches webhook events with retries and delivery logging.
type Client struct {
	db          database.DBTX
	http        *http.Client
	retryDelays []time.Duration
}

func New(db database.DBTX) *Client {
	return &Client{
		db:          db,
		http:        &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{1 * time.Second, 4 * time.Second},
	}
}

// SignPayload computes HMAC-SHA256 of the payload using the secret.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Dispatch sends an event to the webhook URL with up to 3 attempts.
// Each attempt is logged to webhook_deliveries against videoID.
func (c *Client) Dispatch(ctx context.Context, videoID, webhookURL, secret string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	signature := SignPayload(secret, body)
	maxAttempts := 1 + len(c.retryDelays)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		statusCode, respBody, err := c.doPost(ctx, webhookURL, body, signature)
		c.logDelivery(ctx, videoID, event.Name, body, statusCode, respBody, attempt)

		if err == nil && statusCode != nil && *statusCode >= 200 && *statusCode < 300 {
			return nil
		}

		if err != nil {
			lastErr = err
		} else if statusCode != nil {
			lastErr = fmt.Errorf("webhook returned status %d", *statusCode)
		}

		if attempt < maxAttempts {
			select {
			case <-time.After(c.retryDelays[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

func (c *Client) doPost(ctx context.Context, url string, body []byte, signature string) (*int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err.Error(), err
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxResponseBodyBytes)+1))
	respBody := string(respBytes)
	if len(respBody) > maxResponseBodyBytes {
		respBody = respBody[:maxResponseBodyBytes]
	}

	return &resp.StatusCode, respBody, nil
}

func (c *Client) logDelivery(ctx context.Context, videoID, event string, payload []byte, statusCode *int, responseBody string, attempt int) {
	if c.db == nil {
		return
	}
	if _, err := c.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (video_id, event, payload, status_code, response_body, attempt)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		videoID, event, payload, statusCode, responseBody, attempt,
	); err != nil {
		slog.Error("webhook: failed to log delivery", "video_id", videoID, "error", err)
	}
}

// Publisher queues session events and delivers them from a single worker so
// the playback loop never waits on the network. Events are dropped while the
// queue is full.
type Publisher struct {
	client *Client
	url    string
	secret string

	mu     sync.Mutex
	closed bool
	queue  chan events.Event
	done   chan struct{}
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(client *Client, url, secret string) *Publisher {
	p := &Publisher{
		client: client,
		url:    url,
		secret: secret,
		queue:  make(chan events.Event, queueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for e := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := p.client.Dispatch(ctx, e.VideoID, p.url, p.secret, FromInteraction(e)); err != nil {
			slog.Warn("webhook: delivery failed", "session_id", e.SessionID, "kind", e.Kind, "error", err)
		}
		cancel()
	}
}

func (p *Publisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- e:
	default:
		slog.Warn("webhook: queue full, dropping event", "session_id", e.SessionID, "kind", e.Kind)
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}
