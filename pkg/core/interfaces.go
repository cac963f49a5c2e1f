package core

// Bus routes progress events to subscribers.
type Bus interface {
	// Publish delivers an event to all current subscribers
	Publish(p Progress) error
	// Subscribe registers a channel to receive events
	Subscribe(id string, ch chan<- Progress) error
	// Unsubscribe removes a subscription
	Unsubscribe(id string) error
}
