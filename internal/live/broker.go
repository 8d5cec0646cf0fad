// Package live delivers full-snapshot subscriptions over order changes.
//
// Writers publish topic signals; a Subscription reacts to a signal by
// reloading the complete result set, so consumers never merge deltas.
package live

import (
	"strings"
	"sync"
)

// StudentTopic is the topic signalled when a student's orders change.
func StudentTopic(id string) string { return "student:" + id }

// VendorTopic is the topic signalled when a vendor's orders change.
func VendorTopic(id string) string { return "vendor:" + id }

// ParseTopics splits a comma separated notification payload.
func ParseTopics(payload string) []string {
	var out []string
	for _, t := range strings.Split(payload, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Broker fans topic signals out to subscribers. Signals carry no data and
// coalesce: a subscriber that has not consumed its previous signal sees a
// single pending one.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[chan struct{}]struct{}
	closed bool
}

// NewBroker returns an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers interest in topic. The returned channel receives a
// value after each Publish and is closed by cancel or Close.
func (b *Broker) Subscribe(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	set, ok := b.subs[topic]
	if !ok {
		set = make(map[chan struct{}]struct{})
		b.subs[topic] = set
	}
	set[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[topic][ch]; !ok {
				return
			}
			delete(b.subs[topic], ch)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			close(ch)
		})
	}
}

// Publish signals every subscriber of the given topics.
func (b *Broker) Publish(topics ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		for ch := range b.subs[t] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// PublishAll signals every subscriber of every topic. It is used when
// signals may have been missed, so that all snapshots are reloaded.
func (b *Broker) PublishAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, set := range b.subs {
		for ch := range set {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// Close ends every subscription. Later subscriptions are closed at once.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for t, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, t)
	}
}
