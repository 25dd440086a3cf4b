package segment

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pollscribe/pollscribe/transcript"
)

// State names where the engine is in its pause-detection cycle.
type State int

const (
	StateIdle State = iota
	StateMonitoring
	StateActive
	StatePaused
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMonitoring:
		return "monitoring"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// Outcome tags the result of a segment-save attempt.
type Outcome string

const (
	OutcomeSaved        Outcome = "saved"
	OutcomeNoContent    Outcome = "no-content"
	OutcomeNoMeaningful Outcome = "no-meaningful-content"
	OutcomeTooShort     Outcome = "too-short"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeNetworkError Outcome = "network-error"
)

// Result is what a save attempt produced. Saves report outcomes
// instead of failing loudly; the poll loop must always be able to
// resume monitoring afterwards.
type Result struct {
	Ok            bool
	Outcome       Outcome
	SegmentNumber int
	Text          string
	Err           error
}

// Defaults for the timing and gating constants.
const (
	DefaultPauseThreshold   = 10 * time.Second
	DefaultActivityGrace    = 3 * time.Second
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultMinSegmentLength = 25
	DefaultDuplicateScore   = 90

	fetchTimeout = 5 * time.Second
	saveTimeout  = 10 * time.Second
)

// Config holds per-meeting engine settings.
type Config struct {
	MeetingID string
	Hostmail  string

	// PauseThreshold is the total silence after the last activity that
	// finalizes a segment.
	PauseThreshold time.Duration

	// ActivityGrace is the silence tolerated before the engine counts
	// itself as paused.
	ActivityGrace time.Duration

	PollInterval time.Duration

	// MinSegmentLength is the minimum combined text length, in
	// characters, worth persisting.
	MinSegmentLength int

	// DuplicateScore is the Similarity score at or above which a
	// candidate segment is treated as a duplicate of the last one.
	DuplicateScore float64

	// OnResult, when set, receives the outcome of every save attempt.
	OnResult func(Result)
}

func (c *Config) applyDefaults() {
	if c.PauseThreshold <= 0 {
		c.PauseThreshold = DefaultPauseThreshold
	}
	if c.ActivityGrace <= 0 {
		c.ActivityGrace = DefaultActivityGrace
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MinSegmentLength <= 0 {
		c.MinSegmentLength = DefaultMinSegmentLength
	}
	if c.DuplicateScore <= 0 {
		c.DuplicateScore = DefaultDuplicateScore
	}
}

// Source supplies the current fragments for the meeting on every poll.
type Source func() []transcript.Fragment

// Remote is the collector surface the engine needs for saving.
// LastSegment returns "" with a nil error when the meeting has no
// segment yet.
type Remote interface {
	LastSegment(ctx context.Context, meetingID string) (string, error)
	SaveSegment(ctx context.Context, meetingID, hostmail, text string) (int, error)
}

// Engine is the pause-detection state machine. While recording it
// polls the fragment source, watches for sustained silence, and
// finalizes the accumulated speech into a deduplicated segment on the
// collector.
type Engine struct {
	cfg    Config
	source Source
	remote Remote

	mu               sync.Mutex
	state            State
	everHadActivity  bool
	lastActivityText string
	lastActivityAt   time.Time
	pauseStartedAt   time.Time
	saveTimer        *time.Timer
	segmentCount     int
	lastSavedText    string

	saving atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle engine.
func New(cfg Config, source Source, remote Remote) *Engine {
	cfg.applyDefaults()
	return &Engine{cfg: cfg, source: source, remote: remote, state: StateIdle}
}

// Start begins recording. A second Start while recording is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return
	}
	e.state = StateMonitoring
	e.everHadActivity = false
	e.lastActivityText = ""
	e.lastActivityAt = time.Now()
	e.pauseStartedAt = time.Time{}
	e.segmentCount = 0
	e.lastSavedText = ""

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	slog.Info("segmentation started",
		"meetingID", e.cfg.MeetingID,
		"pauseThreshold", e.cfg.PauseThreshold)

	go e.loop(loopCtx, done)
}

// Stop cancels the poll loop and any pending pause countdown and
// returns the engine to idle. An in-flight save finishes on its own;
// its result is still reported.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return
	}
	cancel, done := e.cancel, e.done
	e.stopTimerLocked()
	e.state = StateIdle
	e.everHadActivity = false
	e.lastActivityText = ""
	e.pauseStartedAt = time.Time{}
	e.mu.Unlock()

	cancel()
	<-done

	slog.Info("segmentation stopped", "meetingID", e.cfg.MeetingID)
}

// Status is a UI-facing snapshot of the engine.
type Status struct {
	State          State
	SegmentCount   int
	PauseProgress  float64 // 0-100 while paused
	PauseRemaining time.Duration
}

// Status reports the current state. Progress and remaining are
// observational only; nothing downstream may branch on them.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{State: e.state, SegmentCount: e.segmentCount}
	if e.state == StatePaused && !e.pauseStartedAt.IsZero() {
		elapsed := time.Since(e.pauseStartedAt)
		progress := 100 * float64(elapsed) / float64(e.cfg.PauseThreshold)
		if progress > 100 {
			progress = 100
		}
		st.PauseProgress = progress
		if remaining := e.cfg.PauseThreshold - elapsed; remaining > 0 {
			st.PauseRemaining = remaining
		}
	}
	return st
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll()
		}
	}
}

func (e *Engine) poll() {
	qualifying := transcript.Qualifying(e.source())

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateIdle {
		return
	}

	now := time.Now()

	if len(qualifying) > 0 {
		latest := strings.TrimSpace(qualifying[len(qualifying)-1].Text)

		// New activity means the latest text changed and grew. Growth
		// covers both a fresh fragment and a live partial filling in
		// ("hel" becoming "hello").
		if latest != e.lastActivityText && len(latest) > len(e.lastActivityText) {
			e.lastActivityText = latest
			e.lastActivityAt = now
			e.everHadActivity = true
			if e.state == StatePaused {
				e.stopTimerLocked()
				slog.Debug("speech resumed, pause cancelled", "meetingID", e.cfg.MeetingID)
			}
			if e.state != StateSaving {
				e.state = StateActive
			}
			e.pauseStartedAt = time.Time{}
			return
		}
	}

	if e.state == StateActive && e.everHadActivity {
		silence := now.Sub(e.lastActivityAt)
		if silence > e.cfg.ActivityGrace {
			// The pause clock runs from the end of speech, so the save
			// fires once total silence reaches the threshold.
			e.state = StatePaused
			e.pauseStartedAt = e.lastActivityAt
			remaining := e.cfg.PauseThreshold - silence
			if remaining < 0 {
				remaining = 0
			}
			e.saveTimer = time.AfterFunc(remaining, e.saveSegment)
			slog.Debug("pause detected, save countdown armed",
				"meetingID", e.cfg.MeetingID,
				"silence", silence,
				"remaining", remaining)
		}
	}
}

// saveSegment finalizes the current speech episode. At most one save
// runs at a time; a timer firing while one is in flight is dropped
// outright, not queued.
func (e *Engine) saveSegment() {
	if !e.saving.CompareAndSwap(false, true) {
		return
	}
	defer e.saving.Store(false)

	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return
	}
	e.state = StateSaving
	e.mu.Unlock()

	result := e.attemptSave()
	e.resetPause()
	if result.Ok {
		slog.Info("segment saved",
			"meetingID", e.cfg.MeetingID,
			"segmentNumber", result.SegmentNumber,
			"chars", len(result.Text))
	} else if result.Err != nil {
		slog.Warn("segment save failed",
			"meetingID", e.cfg.MeetingID,
			"outcome", result.Outcome,
			"error", result.Err)
	} else {
		slog.Info("segment not saved",
			"meetingID", e.cfg.MeetingID,
			"outcome", result.Outcome)
	}

	if e.cfg.OnResult != nil {
		e.cfg.OnResult(result)
	}
}

func (e *Engine) attemptSave() Result {
	fragments := transcript.Qualifying(e.source())
	if len(fragments) == 0 {
		return Result{Outcome: OutcomeNoContent}
	}

	meaningful := transcript.Meaningful(fragments)
	if len(meaningful) == 0 {
		return Result{Outcome: OutcomeNoMeaningful}
	}

	combined := transcript.Combine(meaningful)
	if len(combined) < e.cfg.MinSegmentLength {
		return Result{Outcome: OutcomeTooShort, Text: combined}
	}

	lastKnown := e.lastKnownSegment()
	if lastKnown != "" {
		if combined == lastKnown || transcript.Similarity(combined, lastKnown) >= e.cfg.DuplicateScore {
			return Result{Outcome: OutcomeDuplicate, Text: combined}
		}
	}

	ctx, cancelSave := context.WithTimeout(context.Background(), saveTimeout)
	defer cancelSave()
	number, err := e.remote.SaveSegment(ctx, e.cfg.MeetingID, e.cfg.Hostmail, combined)
	if err != nil {
		// Not retried here: the next pause cycle gets a fresh attempt.
		return Result{Outcome: OutcomeNetworkError, Text: combined, Err: err}
	}

	e.mu.Lock()
	e.lastSavedText = combined
	e.segmentCount = number
	e.mu.Unlock()

	return Result{Ok: true, Outcome: OutcomeSaved, SegmentNumber: number, Text: combined}
}

// lastKnownSegment prefers the collector's view, which may be newer
// than ours when another client saves for the same meeting. The
// in-memory copy is only a fallback for when the fetch itself fails.
func (e *Engine) lastKnownSegment() string {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	text, err := e.remote.LastSegment(ctx, e.cfg.MeetingID)
	if err != nil {
		e.mu.Lock()
		fallback := e.lastSavedText
		e.mu.Unlock()
		slog.Debug("last segment fetch failed, using in-memory copy",
			"error", err, "meetingID", e.cfg.MeetingID)
		return fallback
	}
	return text
}

// resetPause clears the pause bookkeeping after a save attempt,
// whatever its outcome, so the next silence can start a fresh cycle.
func (e *Engine) resetPause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopTimerLocked()
	e.pauseStartedAt = time.Time{}
	e.lastActivityAt = time.Now()

	if e.state == StatePaused || e.state == StateSaving {
		if e.everHadActivity {
			e.state = StateActive
		} else {
			e.state = StateMonitoring
		}
	}
}

func (e *Engine) stopTimerLocked() {
	if e.saveTimer != nil {
		e.saveTimer.Stop()
		e.saveTimer = nil
	}
}
