// Package eventbus implements chopstack's typed, synchronous pub/sub bus:
// the shared channel the DAG validator, orchestrator, and VCS engine use to
// report progress to a renderer without depending on it directly.
//
// Structurally grounded on the mutex-guarded subscriber-slice shape of
// github.com/hugo-lorenzo-mato/quorum-ai's internal/events/bus.go, adapted
// from that bus's buffered/async, drop-on-backpressure channel delivery to
// spec.md §4.2's synchronous, per-topic-ordered callback dispatch: each
// subscriber runs to completion before Publish returns, and a panicking
// subscriber is recovered and logged rather than crashing the producer.
package eventbus

import (
	"fmt"
	"sync"
)

// Topic names one of spec.md §4.2's eight event classes.
type Topic string

const (
	TopicTaskStart        Topic = "task:start"
	TopicTaskProgress     Topic = "task:progress"
	TopicTaskComplete     Topic = "task:complete"
	TopicTaskFailed       Topic = "task:failed"
	TopicStreamData       Topic = "stream:data"
	TopicLog              Topic = "log"
	TopicVcsBranchCreated Topic = "vcs:branch-created"
	TopicVcsCommit        Topic = "vcs:commit"
)

// Handler is a subscriber callback. It receives the topic it was invoked
// for (useful for a handler registered on multiple topics) and the
// event payload.
type Handler func(topic Topic, payload interface{})

// PanicHandler is invoked whenever a subscriber panics mid-dispatch, in
// place of letting the panic propagate to the producer. The default bus
// uses a no-op; callers that want panics surfaced to their logger should
// set one via SetPanicHandler.
type PanicHandler func(topic Topic, recovered interface{})

type subscription struct {
	id      uint64
	topic   Topic
	handler Handler
}

// Bus is a typed, synchronous, multi-producer multi-consumer event bus.
// Subscribers may be added or removed at any time; Publish dispatches to
// every subscriber of a topic, in registration order, before returning.
type Bus struct {
	mu           sync.RWMutex
	subs         map[Topic][]subscription
	nextID       uint64
	panicHandler PanicHandler
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{
		subs:         make(map[Topic][]subscription),
		panicHandler: func(Topic, interface{}) {},
	}
}

// SetPanicHandler installs the callback invoked when a subscriber panics.
// It is itself run outside of any lock and must not call back into the bus
// synchronously from within the panicking dispatch (doing so is safe, but
// will be ordered after the current Publish call returns only if it is
// itself asynchronous).
func (b *Bus) SetPanicHandler(h PanicHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h == nil {
		h = func(Topic, interface{}) {}
	}
	b.panicHandler = h
}

// Subscription is an opaque handle returned by Subscribe, used to
// Unsubscribe later.
type Subscription struct {
	topic Topic
	id    uint64
}

// Subscribe registers handler to run, synchronously, for every event
// published on topic. Returns a handle for Unsubscribe.
func (b *Bus) Subscribe(topic Topic, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, topic: topic, handler: handler})
	return Subscription{topic: topic, id: id}
}

// Unsubscribe removes a previously registered subscription. A no-op if the
// subscription was already removed.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing := b.subs[sub.topic]
	filtered := make([]subscription, 0, len(existing))
	for _, s := range existing {
		if s.id != sub.id {
			filtered = append(filtered, s)
		}
	}
	b.subs[sub.topic] = filtered
}

// Publish dispatches payload to every subscriber of topic, in registration
// order, running each to completion before invoking the next — this is
// what preserves per-topic event ordering for consumers. A subscriber that
// panics is recovered and reported to the bus's panic handler; it never
// terminates the producer.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	b.mu.RLock()
	handlers := append([]subscription{}, b.subs[topic]...)
	panicHandler := b.panicHandler
	b.mu.RUnlock()

	for _, s := range handlers {
		invokeSafely(s.handler, topic, payload, panicHandler)
	}
}

func invokeSafely(h Handler, topic Topic, payload interface{}, onPanic PanicHandler) {
	defer func() {
		if r := recover(); r != nil {
			onPanic(topic, r)
		}
	}()
	h(topic, payload)
}

// SubscriberCount returns the number of handlers currently registered for
// topic, primarily for tests and diagnostics.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// LogPayload is the payload shape published on TopicLog.
type LogPayload struct {
	Level    string
	Message  string
	Metadata map[string]interface{}
}

func (p LogPayload) String() string {
	return fmt.Sprintf("[%s] %s", p.Level, p.Message)
}
