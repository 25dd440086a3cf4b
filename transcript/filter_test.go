package transcript

import "testing"

func frags(texts ...string) []Fragment {
	out := make([]Fragment, len(texts))
	for i, text := range texts {
		out[i] = Fragment{Text: text, MeetingID: "m-1", Timestamp: int64(i)}
	}
	return out
}

func TestIsSystemMessage(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"[BLANK_AUDIO]", true},
		{"[inaudible]", true},
		{"Recording started", true},
		{"waiting for speech", true},
		{"The lecture begins now", false},
		{"[bracketed] but with trailing speech", false},
	}
	for _, tt := range tests {
		if got := IsSystemMessage(tt.in); got != tt.want {
			t.Errorf("IsSystemMessage(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsFiller(t *testing.T) {
	for _, s := range []string{"um", "Uh", "okay", "yeah.", "Hmm"} {
		if !IsFiller(s) {
			t.Errorf("IsFiller(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"umbrella", "so what happened", "education"} {
		if IsFiller(s) {
			t.Errorf("IsFiller(%q) = true, want false", s)
		}
	}
}

func TestQualifying(t *testing.T) {
	in := frags(
		"ok",              // too short
		"um",              // too short and filler
		"yeah",            // filler
		"[BLANK_AUDIO]",   // system
		"Recording started", // boilerplate
		"the topic today is photosynthesis",
	)
	out := Qualifying(in)
	if len(out) != 1 {
		t.Fatalf("got %d qualifying fragments, want 1", len(out))
	}
	if out[0].Text != "the topic today is photosynthesis" {
		t.Errorf("qualifying fragment = %q", out[0].Text)
	}
}

func TestMeaningful(t *testing.T) {
	in := frags(
		"short words",                        // 11 chars, below 15
		"fourteen chars",                     // 14 chars, below 15
		"exactly 15 chr.",                    // 15 chars, kept
		"[BLANK_AUDIO]",                      // system
		"this one is clearly long enough to keep",
	)
	out := Meaningful(in)
	if len(out) != 2 {
		t.Fatalf("got %d meaningful fragments, want 2", len(out))
	}
	if out[0].Text != "exactly 15 chr." {
		t.Errorf("meaningful[0] = %q", out[0].Text)
	}
}

func TestCombine(t *testing.T) {
	in := frags("First sentence here.", "  Second   sentence here. ")
	got := Combine(in)
	want := "First sentence here. Second sentence here."
	if got != want {
		t.Errorf("Combine = %q, want %q", got, want)
	}

	if got := Combine(nil); got != "" {
		t.Errorf("Combine(nil) = %q, want empty", got)
	}
}
