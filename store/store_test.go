package store

import (
	"testing"

	"github.com/pollscribe/pollscribe/transcript"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustAppend(t *testing.T, s *Store, f transcript.Fragment) transcript.Fragment {
	t.Helper()
	stored, err := s.Append(f)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return stored
}

func TestAppendAssignsDefaults(t *testing.T) {
	s := openTestStore(t)

	stored := mustAppend(t, s, transcript.Fragment{
		Text:      "hello from the lecture",
		MeetingID: "m-1",
	})

	if stored.ID == "" {
		t.Error("expected an assigned id")
	}
	if stored.Timestamp == 0 {
		t.Error("expected an assigned timestamp")
	}
	if stored.Confidence != transcript.DefaultConfidence {
		t.Errorf("confidence = %v, want %v", stored.Confidence, transcript.DefaultConfidence)
	}
	if stored.Speaker != transcript.SpeakerGuest {
		t.Errorf("speaker = %q, want guest", stored.Speaker)
	}
}

func TestListOrderedAndFiltered(t *testing.T) {
	s := openTestStore(t)

	mustAppend(t, s, transcript.Fragment{Text: "second", MeetingID: "m-1", Timestamp: 2000})
	mustAppend(t, s, transcript.Fragment{Text: "first", MeetingID: "m-1", Timestamp: 1000})
	mustAppend(t, s, transcript.Fragment{Text: "other meeting", MeetingID: "m-2", Timestamp: 1500})

	got, err := s.List("m-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d fragments, want 2", len(got))
	}
	if got[0].Text != "first" || got[1].Text != "second" {
		t.Errorf("order = [%q, %q], want timestamp order", got[0].Text, got[1].Text)
	}

	all, err := s.List("")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d fragments across meetings, want 3", len(all))
	}
}

func TestClearThenSummarize(t *testing.T) {
	s := openTestStore(t)

	mustAppend(t, s, transcript.Fragment{Text: "some recorded speech content", MeetingID: "m-1", Timestamp: 1000})
	mustAppend(t, s, transcript.Fragment{Text: "kept elsewhere", MeetingID: "m-2", Timestamp: 1000})

	if err := s.Clear("m-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	sum, err := s.Summarize("m-1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.TotalRecords != 0 {
		t.Errorf("TotalRecords = %d, want 0", sum.TotalRecords)
	}
	if sum.ReadyForAI {
		t.Error("ReadyForAI = true, want false after clear")
	}

	// The other meeting is untouched.
	other, err := s.List("m-2")
	if err != nil {
		t.Fatalf("list m-2: %v", err)
	}
	if len(other) != 1 {
		t.Errorf("m-2 fragments = %d, want 1", len(other))
	}

	// Clearing again is harmless.
	if err := s.Clear("m-1"); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	s := openTestStore(t)

	mustAppend(t, s, transcript.Fragment{
		Text: "photosynthesis converts light", MeetingID: "m-1", Timestamp: 0, ParticipantID: "p-1",
	})
	mustAppend(t, s, transcript.Fragment{
		Text: "into chemical energy inside plant cells today", MeetingID: "m-1", Timestamp: 60000, ParticipantID: "p-2",
	})

	sum, err := s.Summarize("m-1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if sum.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2", sum.TotalRecords)
	}
	if sum.TotalWords != 10 {
		t.Errorf("TotalWords = %d, want 10", sum.TotalWords)
	}
	if sum.TotalDurationMs != 60000 {
		t.Errorf("TotalDurationMs = %d, want 60000", sum.TotalDurationMs)
	}
	if sum.UniqueParticipants != 2 {
		t.Errorf("UniqueParticipants = %d, want 2", sum.UniqueParticipants)
	}
	if sum.AvgWordsPerMinute != 10 {
		t.Errorf("AvgWordsPerMinute = %v, want 10", sum.AvgWordsPerMinute)
	}
	want := "photosynthesis converts light into chemical energy inside plant cells today"
	if sum.FullText != want {
		t.Errorf("FullText = %q, want %q", sum.FullText, want)
	}
	if !sum.ReadyForAI {
		t.Error("ReadyForAI = false, want true at 10 words")
	}
}

func TestSummarizeSingleFragmentDuration(t *testing.T) {
	s := openTestStore(t)
	mustAppend(t, s, transcript.Fragment{Text: "just one fragment", MeetingID: "m-1", Timestamp: 5000})

	sum, err := s.Summarize("m-1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.TotalDurationMs != 0 {
		t.Errorf("TotalDurationMs = %d, want 0 for a single fragment", sum.TotalDurationMs)
	}
}

func TestQuestionCapabilityBoundaries(t *testing.T) {
	tests := []struct {
		words int
		want  Capability
	}{
		{0, Capability{1, 2, 1, "very-low"}},
		{19, Capability{1, 2, 1, "very-low"}},
		{20, Capability{1, 3, 2, "low"}},
		{49, Capability{1, 3, 2, "low"}},
		{50, Capability{2, 5, 3, "medium"}},
		{99, Capability{2, 5, 3, "medium"}},
		{100, Capability{3, 8, 5, "high"}},
		{199, Capability{3, 8, 5, "high"}},
		{200, Capability{5, 12, 8, "very-high"}},
		{1000, Capability{5, 12, 8, "very-high"}},
	}
	for _, tt := range tests {
		got := QuestionCapability(Summary{TotalWords: tt.words})
		if got != tt.want {
			t.Errorf("QuestionCapability(%d words) = %+v, want %+v", tt.words, got, tt.want)
		}
	}
}

func TestSegmentsMonotonicPerMeeting(t *testing.T) {
	s := openTestStore(t)

	n1, err := s.SaveSegment("m-1", "first segment of the session")
	if err != nil {
		t.Fatalf("save segment: %v", err)
	}
	n2, err := s.SaveSegment("m-1", "second segment of the session")
	if err != nil {
		t.Fatalf("save segment: %v", err)
	}
	other, err := s.SaveSegment("m-2", "unrelated meeting segment")
	if err != nil {
		t.Fatalf("save segment: %v", err)
	}

	if n1 != 1 || n2 != 2 {
		t.Errorf("sequence numbers = %d, %d, want 1, 2", n1, n2)
	}
	if other != 1 {
		t.Errorf("other meeting sequence = %d, want 1", other)
	}

	last, err := s.LastSegment("m-1")
	if err != nil {
		t.Fatalf("last segment: %v", err)
	}
	if last == nil {
		t.Fatal("expected a segment")
	}
	if last.SequenceNumber != 2 || last.Text != "second segment of the session" {
		t.Errorf("last = #%d %q", last.SequenceNumber, last.Text)
	}
}

func TestLastSegmentNone(t *testing.T) {
	s := openTestStore(t)

	last, err := s.LastSegment("m-1")
	if err != nil {
		t.Fatalf("last segment: %v", err)
	}
	if last != nil {
		t.Errorf("expected nil, got %+v", last)
	}
}
