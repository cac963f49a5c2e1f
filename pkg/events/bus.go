// Package events fans training progress out to in-process subscribers.
package events

import (
	"fmt"
	"sync"

	"github.com/rlworks/rollout/pkg/core"
)

// Bus implements core.Bus with one channel per subscriber.
type Bus struct {
	subscribers map[string]chan<- core.Progress
	mu          sync.RWMutex
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]chan<- core.Progress),
	}
}

// Publish delivers the event to every subscriber. Sends are non-blocking; a
// full subscriber channel is an error rather than a stall, since publishers
// sit on the engine's live event stream.
func (b *Bus) Publish(p core.Progress) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- p:
		default:
			return fmt.Errorf("events: subscriber %s's channel is full", id)
		}
	}
	return nil
}

// Subscribe registers a channel to receive events.
func (b *Bus) Subscribe(id string, ch chan<- core.Progress) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; exists {
		return fmt.Errorf("events: %s is already subscribed", id)
	}
	b.subscribers[id] = ch
	return nil
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return fmt.Errorf("events: %s is not subscribed", id)
	}
	delete(b.subscribers, id)
	return nil
}

// Reset drops all subscriptions.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]chan<- core.Progress)
}
