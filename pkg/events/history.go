package events

import (
	"sync"

	"github.com/rlworks/rollout/pkg/core"
)

// History keeps the most recent progress events for status display. Oldest
// events are dropped once capacity is reached.
type History struct {
	stream   []core.Progress
	capacity int
	mu       sync.RWMutex
}

func NewHistory(capacity int) *History {
	return &History{
		stream:   make([]core.Progress, 0, capacity),
		capacity: capacity,
	}
}

func (h *History) Add(p core.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stream = append(h.stream, p)
	if len(h.stream) > h.capacity {
		h.stream = h.stream[1:]
	}
}

// All returns a copy of the retained events, oldest first.
func (h *History) All() []core.Progress {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]core.Progress, len(h.stream))
	copy(out, h.stream)
	return out
}

// Latest returns the most recent event, if any.
func (h *History) Latest() (core.Progress, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.stream) == 0 {
		return core.Progress{}, false
	}
	return h.stream[len(h.stream)-1], true
}
