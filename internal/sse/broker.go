// Package sse streams build progress to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Build event kinds accepted by PublishBuildEvent.
const (
	KindBuilt     = "built"
	KindRemoved   = "removed"
	KindCompleted = "completed"
)

// Event names on the wire.
const (
	EventEntryBuilt     = "entry.built"
	EventEntryRemoved   = "entry.removed"
	EventBuildCompleted = "build.completed"
)

const (
	clientBuffer     = 64
	defaultKeepAlive = 30 * time.Second
	retryMillis      = 3000
)

type entryPayload struct {
	Path string `json:"path,omitempty"`
}

// Broker fans build events out to connected clients. Slow clients miss
// events instead of stalling the build. At most one build.completed is sent
// per throttle interval.
type Broker struct {
	mu            sync.Mutex
	clients       map[chan []byte]struct{}
	seq           uint64
	lastCompleted time.Time
	closed        bool

	completedMin time.Duration
	keepAlive    time.Duration
}

// NewBroker creates a Broker. A non-positive completedThrottle means two
// seconds.
func NewBroker(completedThrottle time.Duration) *Broker {
	if completedThrottle <= 0 {
		completedThrottle = 2 * time.Second
	}
	return &Broker{
		clients:      make(map[chan []byte]struct{}),
		completedMin: completedThrottle,
		keepAlive:    defaultKeepAlive,
	}
}

// PublishBuildEvent maps a watcher callback onto the stream. Unknown kinds are
// ignored.
func (b *Broker) PublishBuildEvent(kind, path string) {
	var name string
	switch kind {
	case KindBuilt:
		name = EventEntryBuilt
	case KindRemoved:
		name = EventEntryRemoved
	case KindCompleted:
		name, path = EventBuildCompleted, ""
	default:
		return
	}
	data, err := json.Marshal(entryPayload{Path: path})
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if kind == KindCompleted {
		now := time.Now()
		if !b.lastCompleted.IsZero() && now.Sub(b.lastCompleted) < b.completedMin {
			return
		}
		b.lastCompleted = now
	}

	b.seq++
	msg := fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", b.seq, name, data)
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (b *Broker) subscribe() (chan []byte, bool) {
	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	b.clients[ch] = struct{}{}
	return ch, true
}

func (b *Broker) unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// Clients returns the number of connected clients.
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client. Later events are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}

// ServeHTTP streams events until the client goes away or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch, ok := b.subscribe()
	if !ok {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer b.unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
