package syncq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pollscribe/pollscribe/transcript"
)

type collectorStub struct {
	mu       sync.Mutex
	batches  []batchRequest
	failFor  map[string]bool // meetingID -> reject with 500
	rejected int
}

func (c *collectorStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.failFor[req.MeetingID] {
			c.rejected++
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		c.batches = append(c.batches, req)
		json.NewEncoder(w).Encode(map[string]int{"savedCount": len(req.Transcripts)})
	}
}

func (c *collectorStub) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func newTestQueue(t *testing.T, url string) *Queue {
	t.Helper()
	return New(Config{
		CollectorURL:  url,
		FlushInterval: time.Hour, // keep the ticker out of the way
		Timeout:       2 * time.Second,
	})
}

func frag(meetingID, text string) transcript.Fragment {
	return transcript.Fragment{
		Text: text, MeetingID: meetingID, ParticipantID: "p-1",
		Speaker: transcript.SpeakerHost, Timestamp: time.Now().UnixMilli(), IsFinal: true,
	}
}

func TestSyncOneDelivered(t *testing.T) {
	stub := &collectorStub{}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	q := newTestQueue(t, server.URL)

	if !q.SyncOne(context.Background(), frag("m-1", "hello there")) {
		t.Fatal("SyncOne = false, want true")
	}
	if q.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0", q.PendingCount())
	}
	if stub.batchCount() != 1 {
		t.Errorf("batches = %d, want 1", stub.batchCount())
	}
}

func TestSyncOneOfflineQueues(t *testing.T) {
	stub := &collectorStub{}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	q := newTestQueue(t, server.URL)
	q.SetOnline(false)

	if q.SyncOne(context.Background(), frag("m-1", "offline text")) {
		t.Fatal("SyncOne = true while offline, want false")
	}
	if q.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", q.PendingCount())
	}
	if stub.batchCount() != 0 {
		t.Errorf("no request should have been made, got %d", stub.batchCount())
	}
}

func TestSyncOneFailureQueues(t *testing.T) {
	stub := &collectorStub{failFor: map[string]bool{"m-1": true}}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	q := newTestQueue(t, server.URL)

	if q.SyncOne(context.Background(), frag("m-1", "rejected text")) {
		t.Fatal("SyncOne = true on server error, want false")
	}
	if q.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", q.PendingCount())
	}
}

func TestOnlineTransitionFlushesImmediately(t *testing.T) {
	stub := &collectorStub{}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	q := newTestQueue(t, server.URL)
	q.SetOnline(false)
	q.SyncOne(context.Background(), frag("m-1", "while offline"))

	// No Start loop running: the transition itself must flush.
	q.SetOnline(true)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if q.PendingCount() == 0 && stub.batchCount() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("flush never happened: pending=%d batches=%d", q.PendingCount(), stub.batchCount())
}

func TestSyncBatchPartialGroupFailure(t *testing.T) {
	stub := &collectorStub{failFor: map[string]bool{"m-bad": true}}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	q := newTestQueue(t, server.URL)

	delivered := q.SyncBatch(context.Background(), []transcript.Fragment{
		frag("m-good", "first good"),
		frag("m-bad", "first bad"),
		frag("m-good", "second good"),
		frag("m-bad", "second bad"),
	})

	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}

	pending := q.Pending()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	for _, f := range pending {
		if f.MeetingID != "m-bad" {
			t.Errorf("pending fragment from %q, want only m-bad", f.MeetingID)
		}
	}
}

func TestFlushRetriesUntilDelivered(t *testing.T) {
	stub := &collectorStub{failFor: map[string]bool{"m-1": true}}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	q := newTestQueue(t, server.URL)
	q.SyncOne(context.Background(), frag("m-1", "flaky delivery"))

	q.Flush(context.Background())
	if q.PendingCount() != 1 {
		t.Fatalf("pending = %d after failed flush, want 1", q.PendingCount())
	}

	// Collector recovers; the next flush drains the queue.
	stub.mu.Lock()
	stub.failFor["m-1"] = false
	stub.mu.Unlock()

	q.Flush(context.Background())
	if q.PendingCount() != 0 {
		t.Errorf("pending = %d after successful flush, want 0", q.PendingCount())
	}
}
