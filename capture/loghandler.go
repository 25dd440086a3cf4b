package capture

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pollscribe/pollscribe/bus"
	"github.com/pollscribe/pollscribe/transcript"
)

// AnnouncementMarker is the substring a log record's message must
// carry to be treated as a transcript announcement.
const AnnouncementMarker = "Received transcript:"

// AnnouncementHandler lets producers that only emit structured logs
// feed the fragment bus. It decorates another slog.Handler: every
// record passes through to the wrapped handler first, untouched, and
// records whose message carries AnnouncementMarker with attrs forming
// a final transcript announcement are republished as fragments.
// Records that merely look similar are ignored without comment, and no
// failure on the announcement path may disturb logging itself.
type AnnouncementHandler struct {
	next slog.Handler
	bus  *bus.Bus
}

// NewAnnouncementHandler decorates next.
func NewAnnouncementHandler(next slog.Handler, b *bus.Bus) *AnnouncementHandler {
	return &AnnouncementHandler{next: next, bus: b}
}

// Install wraps the process-wide slog default with an
// AnnouncementHandler and returns a restore function. Restore puts
// back exactly the logger that was current at install time, so
// repeated install/restore pairs nest LIFO.
func Install(b *bus.Bus) func() {
	prev := slog.Default()
	slog.SetDefault(slog.New(NewAnnouncementHandler(prev.Handler(), b)))
	return func() { slog.SetDefault(prev) }
}

// Handle forwards the record, then inspects it for an announcement.
func (h *AnnouncementHandler) Handle(ctx context.Context, rec slog.Record) error {
	err := h.next.Handle(ctx, rec)

	func() {
		defer func() {
			if r := recover(); r != nil {
				// Swallowed: a malformed announcement is not a logging error.
				_ = r
			}
		}()
		h.inspect(rec)
	}()

	return err
}

func (h *AnnouncementHandler) inspect(rec slog.Record) {
	if !strings.Contains(rec.Message, AnnouncementMarker) {
		return
	}

	var text, meetingID, kind, role, participantID string
	var confidence float64
	rec.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "text":
			text = a.Value.String()
		case "meetingId":
			meetingID = a.Value.String()
		case "type":
			kind = a.Value.String()
		case "role":
			role = a.Value.String()
		case "participantId":
			participantID = a.Value.String()
		case "confidence":
			if a.Value.Kind() == slog.KindFloat64 {
				confidence = a.Value.Float64()
			}
		}
		return true
	})

	if kind != "final" || meetingID == "" {
		return
	}
	if len(strings.TrimSpace(text)) <= MinTextLength {
		return
	}

	f := transcript.NewFragment(meetingID, participantID, text, transcript.SpeakerFromRole(role))
	if confidence > 0 {
		f.Confidence = confidence
	}
	h.bus.Publish(bus.TopicFragments, f)
}

// Enabled defers to the wrapped handler.
func (h *AnnouncementHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// WithAttrs keeps the decoration on the derived handler.
func (h *AnnouncementHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AnnouncementHandler{next: h.next.WithAttrs(attrs), bus: h.bus}
}

// WithGroup keeps the decoration on the derived handler.
func (h *AnnouncementHandler) WithGroup(name string) slog.Handler {
	return &AnnouncementHandler{next: h.next.WithGroup(name), bus: h.bus}
}
