package bus

import (
	"testing"

	"github.com/pollscribe/pollscribe/transcript"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()

	var got []string
	cancel := b.Subscribe(TopicFragments, func(f transcript.Fragment) {
		got = append(got, f.Text)
	})
	defer cancel()

	b.Publish(TopicFragments, transcript.Fragment{Text: "one"})
	b.Publish(TopicFragments, transcript.Fragment{Text: "two"})

	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("received %v, want [one two]", got)
	}
}

func TestCancelRemovesOnlyOneHandler(t *testing.T) {
	b := New()

	var first, second int
	cancelFirst := b.Subscribe(TopicFragments, func(transcript.Fragment) { first++ })
	cancelSecond := b.Subscribe(TopicFragments, func(transcript.Fragment) { second++ })
	defer cancelSecond()

	b.Publish(TopicFragments, transcript.Fragment{Text: "a"})
	cancelFirst()
	b.Publish(TopicFragments, transcript.Fragment{Text: "b"})

	if first != 1 {
		t.Errorf("first handler called %d times, want 1", first)
	}
	if second != 2 {
		t.Errorf("second handler called %d times, want 2", second)
	}

	// Cancelling twice is harmless.
	cancelFirst()
	b.Publish(TopicFragments, transcript.Fragment{Text: "c"})
	if second != 3 {
		t.Errorf("second handler called %d times, want 3", second)
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	b := New()

	var hits int
	cancel := b.Subscribe("other.topic", func(transcript.Fragment) { hits++ })
	defer cancel()

	b.Publish(TopicFragments, transcript.Fragment{Text: "x"})
	if hits != 0 {
		t.Errorf("handler on another topic was called %d times", hits)
	}
}
