package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pollscribe/pollscribe/bus"
	"github.com/pollscribe/pollscribe/transcript"
)

const (
	handshakeTimeout = 10 * time.Second

	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// Message is what the ASR relay sends over the websocket.
type Message struct {
	Text          string  `json:"text"`
	Type          string  `json:"type"` // partial | final | error
	Confidence    float64 `json:"confidence"`
	ParticipantID string  `json:"participantId"`
	Role          string  `json:"role"`
	Error         string  `json:"error"`
}

// Config holds relay connection settings.
type Config struct {
	// URL is the relay websocket endpoint.
	URL string

	// MeetingID stamps every published fragment.
	MeetingID string
}

// Client maintains the websocket to the ASR relay and publishes every
// recognized fragment on the bus. Partial recognitions are published
// non-final so downstream consumers can show live text without
// persisting it.
type Client struct {
	cfg    Config
	bus    *bus.Bus
	dialer *websocket.Dialer
}

// New creates a relay client. Run must be called to connect.
func New(cfg Config, b *bus.Bus) *Client {
	return &Client{
		cfg: cfg,
		bus: b,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Run connects to the relay and reconnects with capped backoff until
// ctx is cancelled. It never returns an error; a relay outage is a
// degraded mode, not a fault.
func (c *Client) Run(ctx context.Context) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			slog.Warn("relay connection failed",
				"error", err,
				"url", c.cfg.URL,
				"retryIn", backoff)

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		slog.Info("connected to relay",
			"url", c.cfg.URL,
			"meetingID", c.cfg.MeetingID)
		backoff = initialBackoff

		c.readLoop(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		slog.Warn("relay connection lost, reconnecting", "retryIn", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Close the socket when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil &&
				websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("relay read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("discarding malformed relay message", "error", err)
			continue
		}

		c.handle(msg)
	}
}

func (c *Client) handle(msg Message) {
	if msg.Type == "error" {
		slog.Warn("relay reported recognition error",
			"error", msg.Error,
			"meetingID", c.cfg.MeetingID)
		return
	}
	if msg.Text == "" {
		return
	}

	confidence := msg.Confidence
	if confidence == 0 {
		confidence = transcript.DefaultConfidence
	}

	f := transcript.Fragment{
		Text:          msg.Text,
		Timestamp:     time.Now().UnixMilli(),
		Speaker:       transcript.SpeakerFromRole(msg.Role),
		ParticipantID: msg.ParticipantID,
		MeetingID:     c.cfg.MeetingID,
		Confidence:    confidence,
		IsFinal:       msg.Type == "final",
	}

	slog.Debug("relay fragment received",
		"meetingID", f.MeetingID,
		"final", f.IsFinal,
		"chars", len(f.Text))

	c.bus.Publish(bus.TopicFragments, f)
}
