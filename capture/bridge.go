package capture

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/pollscribe/pollscribe/bus"
	"github.com/pollscribe/pollscribe/store"
	"github.com/pollscribe/pollscribe/syncq"
	"github.com/pollscribe/pollscribe/transcript"
)

// MinTextLength is the trimmed length a fragment must exceed before
// the bridge accepts it.
const MinTextLength = 5

// Bridge harvests final transcript fragments for one meeting from the
// bus and lands them in the local store plus the sync queue. It is the
// consumer side of the fragment bus; producers are the relay client
// and the announcement log handler.
type Bridge struct {
	meetingID string
	bus       *bus.Bus
	store     *store.Store
	queue     *syncq.Queue

	cancel   func()
	inFlight atomic.Bool
}

// New creates a detached bridge for one meeting.
func New(meetingID string, b *bus.Bus, st *store.Store, q *syncq.Queue) *Bridge {
	return &Bridge{meetingID: meetingID, bus: b, store: st, queue: q}
}

// Attach subscribes the bridge to the fragment topic. Attaching an
// already attached bridge is a no-op.
func (br *Bridge) Attach() {
	if br.cancel != nil {
		return
	}
	br.cancel = br.bus.Subscribe(bus.TopicFragments, br.handle)
	slog.Debug("capture bridge attached", "meetingID", br.meetingID)
}

// Detach removes this bridge's subscription, leaving every other
// consumer on the topic in place.
func (br *Bridge) Detach() {
	if br.cancel == nil {
		return
	}
	br.cancel()
	br.cancel = nil
	slog.Debug("capture bridge detached", "meetingID", br.meetingID)
}

func (br *Bridge) handle(f transcript.Fragment) {
	// Announcements arriving synchronously while one is being
	// processed are dropped; capture must never feed back into itself.
	if !br.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer br.inFlight.Store(false)

	// Nothing on this path may take down the host program.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("capture bridge recovered", "panic", r, "meetingID", br.meetingID)
		}
	}()

	if f.MeetingID != br.meetingID || !f.IsFinal {
		return
	}
	if len(strings.TrimSpace(f.Text)) <= MinTextLength {
		return
	}
	if f.Speaker != transcript.SpeakerHost {
		f.Speaker = transcript.SpeakerGuest
	}

	stored, err := br.store.Append(f)
	if err != nil {
		slog.Error("failed to store captured fragment",
			"error", err, "meetingID", br.meetingID)
		return
	}

	// Fire and forget; the queue holds on to anything undelivered.
	go br.queue.SyncOne(context.Background(), stored)

	slog.Debug("captured transcript fragment",
		"meetingID", br.meetingID,
		"participantID", stored.ParticipantID,
		"chars", len(stored.Text))
}
