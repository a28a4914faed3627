// Package notify carries ingestion progress events from the pipeline to
// observers. Notifications are strictly best-effort: a slow or absent
// observer never blocks or fails ingestion.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event is one progress update for a document's ingestion.
type Event struct {
	DocumentID string `json:"document_id"`
	Percent    int    `json:"percent"`
	Message    string `json:"message"`
}

// Notifier receives progress updates. Implementations must not block.
type Notifier interface {
	Notify(documentID string, percent int, message string)
}

// Discard is a Notifier that drops every event.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(string, int, string) {}

// Logger writes progress events to a zerolog logger at debug level.
type Logger struct {
	Log zerolog.Logger
}

// Notify implements Notifier.
func (l Logger) Notify(documentID string, percent int, message string) {
	l.Log.Debug().
		Str("document_id", documentID).
		Int("percent", percent).
		Str("message", message).
		Msg("ingest progress")
}

// Hub fans progress events out to per-document subscribers, typically SSE
// streams. Subscriber channels are buffered; when a subscriber falls behind
// its events are dropped rather than stalling the pipeline.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
	next Notifier // optional chained notifier (e.g. Logger)
}

// NewHub creates a Hub. next may be nil.
func NewHub(next Notifier) *Hub {
	return &Hub{
		subs: make(map[string]map[chan Event]struct{}),
		next: next,
	}
}

// Subscribe registers interest in one document's progress. The returned
// cancel func must be called when the subscriber goes away; it closes ch.
func (h *Hub) Subscribe(documentID string) (ch chan Event, cancel func()) {
	ch = make(chan Event, 16)
	h.mu.Lock()
	set := h.subs[documentID]
	if set == nil {
		set = make(map[chan Event]struct{})
		h.subs[documentID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[documentID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, documentID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Notify implements Notifier with non-blocking sends.
func (h *Hub) Notify(documentID string, percent int, message string) {
	ev := Event{DocumentID: documentID, Percent: percent, Message: message}

	h.mu.RLock()
	for ch := range h.subs[documentID] {
		select {
		case ch <- ev:
		default: // subscriber behind, drop
		}
	}
	h.mu.RUnlock()

	if h.next != nil {
		h.next.Notify(documentID, percent, message)
	}
}
