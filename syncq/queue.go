package syncq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pollscribe/pollscribe/transcript"
)

const (
	// DefaultFlushInterval is how often the background loop retries
	// pending deliveries.
	DefaultFlushInterval = 30 * time.Second

	defaultTimeout = 10 * time.Second
)

// Config holds queue settings.
type Config struct {
	// CollectorURL is the base URL of the transcript collector.
	CollectorURL string

	// FlushInterval between background retry attempts.
	FlushInterval time.Duration

	// Timeout for a single delivery request.
	Timeout time.Duration
}

// Queue delivers fragments to the collector at least once. Deliveries
// attempted while offline, and deliveries that fail, are held in a
// pending list and retried until they succeed. Duplicate delivery of a
// fragment is possible and accepted; the collector keys on fragment id.
type Queue struct {
	cfg    Config
	client *http.Client

	mu      sync.Mutex
	pending []transcript.Fragment
	online  bool
}

// New creates a queue that assumes it is online until told otherwise.
func New(cfg Config) *Queue {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Queue{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		online: true,
	}
}

// SyncOne attempts a single delivery and reports whether the fragment
// was delivered. Anything undelivered lands on the pending list; this
// never fails loudly because a missed delivery is queue state, not a
// fault.
func (q *Queue) SyncOne(ctx context.Context, f transcript.Fragment) bool {
	if !q.Online() {
		q.enqueue(f)
		return false
	}
	if err := q.post(ctx, f.MeetingID, []transcript.Fragment{f}); err != nil {
		slog.Debug("fragment delivery failed, queued for retry",
			"error", err, "meetingID", f.MeetingID)
		q.enqueue(f)
		return false
	}
	return true
}

// SyncBatch delivers fragments grouped per meeting, one request per
// group. A failed group is re-queued whole; other groups are
// unaffected. Returns how many fragments were delivered.
func (q *Queue) SyncBatch(ctx context.Context, fragments []transcript.Fragment) int {
	groups := make(map[string][]transcript.Fragment)
	var order []string
	for _, f := range fragments {
		if _, ok := groups[f.MeetingID]; !ok {
			order = append(order, f.MeetingID)
		}
		groups[f.MeetingID] = append(groups[f.MeetingID], f)
	}

	delivered := 0
	for _, meetingID := range order {
		group := groups[meetingID]
		if err := q.post(ctx, meetingID, group); err != nil {
			slog.Debug("batch delivery failed, group re-queued",
				"error", err, "meetingID", meetingID, "count", len(group))
			q.enqueueAll(group)
			continue
		}
		delivered += len(group)
	}
	return delivered
}

// Start runs the periodic flush loop until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.FlushInterval)
	defer ticker.Stop()

	slog.Debug("sync queue started", "flushInterval", q.cfg.FlushInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("sync queue stopped", "pending", q.PendingCount())
			return
		case <-ticker.C:
			q.Flush(ctx)
		}
	}
}

// Flush retries everything pending in one batch. Whatever fails goes
// straight back on the pending list for the next attempt.
func (q *Queue) Flush(ctx context.Context) {
	if !q.Online() {
		return
	}

	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	delivered := q.SyncBatch(ctx, pending)
	if delivered > 0 {
		slog.Info("flushed pending transcript fragments",
			"delivered", delivered, "remaining", q.PendingCount())
	}
}

// SetOnline records a connectivity change. Coming back online kicks an
// immediate flush instead of waiting for the ticker.
func (q *Queue) SetOnline(online bool) {
	q.mu.Lock()
	was := q.online
	q.online = online
	q.mu.Unlock()

	if online && !was {
		slog.Debug("connectivity restored, flushing pending fragments")
		go q.Flush(context.Background())
	}
}

// Online reports the last known connectivity state.
func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// Pending returns a copy of the undelivered fragments, oldest first.
func (q *Queue) Pending() []transcript.Fragment {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]transcript.Fragment, len(q.pending))
	copy(out, q.pending)
	return out
}

// PendingCount returns how many fragments await delivery.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) enqueue(f transcript.Fragment) {
	q.mu.Lock()
	q.pending = append(q.pending, f)
	q.mu.Unlock()
}

func (q *Queue) enqueueAll(fs []transcript.Fragment) {
	q.mu.Lock()
	q.pending = append(q.pending, fs...)
	q.mu.Unlock()
}

type batchRequest struct {
	MeetingID     string                `json:"meetingId"`
	Role          string                `json:"role"`
	ParticipantID string                `json:"participantId"`
	Transcripts   []transcript.Fragment `json:"transcripts"`
}

func (q *Queue) post(ctx context.Context, meetingID string, fragments []transcript.Fragment) error {
	req := batchRequest{MeetingID: meetingID, Transcripts: fragments}
	if len(fragments) > 0 {
		req.Role = string(fragments[0].Speaker)
		req.ParticipantID = fragments[0].ParticipantID
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		q.cfg.CollectorURL+"/transcripts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := q.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post transcripts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}
	return nil
}
