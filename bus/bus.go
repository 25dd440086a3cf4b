package bus

import (
	"sync"

	"github.com/pollscribe/pollscribe/transcript"
)

// TopicFragments is the topic transcript producers publish on.
const TopicFragments = "transcript.fragment"

// Handler receives published fragments.
type Handler func(transcript.Fragment)

// Bus is a small in-process publish/subscribe channel for transcript
// fragments. Producers call Publish directly and consumers register
// typed handlers, so nobody has to sniff a shared log stream to learn
// about new transcript content.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
}

type subscription struct {
	id      int
	handler Handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for a topic and returns a cancel
// function. Cancelling removes only this handler; other subscriptions
// on the topic are untouched, so attach/detach cycles nest freely.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, s := range subs {
			if s.id == id {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the fragment to every current subscriber of the
// topic, synchronously and in subscription order.
func (b *Bus) Publish(topic string, f transcript.Fragment) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(f)
	}
}
