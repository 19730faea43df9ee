package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SettingsChanged is emitted after a show's settings are persisted with an
// actual diff. Consumers (the search scheduler) react to the changed
// fields; an update that changes nothing emits nothing.
type SettingsChanged struct {
	EventID       string    `json:"eventId"`
	ShowID        int64     `json:"showId"`
	ChangedFields []string  `json:"changedFields"`
	Paused        bool      `json:"paused"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// NewSettingsChanged builds an event with a fresh ID and timestamp.
func NewSettingsChanged(showID int64, changed []string, paused bool) SettingsChanged {
	return SettingsChanged{
		EventID:       uuid.NewString(),
		ShowID:        showID,
		ChangedFields: changed,
		Paused:        paused,
		OccurredAt:    time.Now().UTC(),
	}
}

// Changed reports whether the named field is part of the diff.
func (e SettingsChanged) Changed(field string) bool {
	for _, f := range e.ChangedFields {
		if f == field {
			return true
		}
	}
	return false
}

// Bus fans SettingsChanged events out to subscribers. Publishing never
// blocks; a subscriber that falls behind loses events.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan SettingsChanged]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan SettingsChanged]struct{})}
}

// Subscribe registers a new buffered subscription channel.
func (b *Bus) Subscribe() chan SettingsChanged {
	ch := make(chan SettingsChanged, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes the channel.
func (b *Bus) Unsubscribe(ch chan SettingsChanged) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(e SettingsChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
