// Package sse implements a Server-Sent Events broker for live results-tree
// updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/notecheck/internal/address"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ArtifactEvent is the payload of artifact.* events.
type ArtifactEvent struct {
	Path      string `json:"path"`
	Idx       int    `json:"idx"`
	Model     string `json:"model,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

type artifactEventReq struct {
	kind string
	path string
}

// Scope narrows the artifact.* events a subscriber receives. The zero
// Scope, like one built from empty filters, matches every artifact.
// results.updated and explicitly published events reach every subscriber.
type Scope struct {
	Idx      address.Filter
	Model    address.Filter
	Prompt   address.Filter
	Filename address.Filter
}

// ScopeFromQuery reads the idx, model, prompt and filename query
// parameters in their command-line form.
func ScopeFromQuery(q url.Values) Scope {
	return Scope{
		Idx:      address.ParseFilter(q.Get("idx")),
		Model:    address.ParseFilter(q.Get("model")),
		Prompt:   address.ParseFilter(q.Get("prompt")),
		Filename: address.ParseFilter(q.Get("filename")),
	}
}

// Matches reports whether an artifact event for data passes the scope.
// Paths that do not decode only pass a scope with no restrictions.
func (s Scope) Matches(data ArtifactEvent, decoded bool) bool {
	open := func(f address.Filter) bool { return f.Kind() == address.Wildcard }
	if !decoded {
		return open(s.Idx) && open(s.Model) && open(s.Prompt) && open(s.Filename)
	}
	return s.Idx.Matches(strconv.Itoa(data.Idx)) &&
		s.Model.Matches(data.Model) &&
		s.Prompt.Matches(data.Prompt) &&
		s.Filename.Matches(data.Filename)
}

type subscription struct {
	ch    chan []byte
	scope Scope
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + results throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	resultsMin time.Duration
	keepAlive  time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	artifactCh    chan artifactEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. results.updated is emitted at most
// once per throttle interval. Idle streams get a comment line every 30s.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		resultsMin:    throttle,
		keepAlive:     30 * time.Second,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		artifactCh:    make(chan artifactEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]Scope)
	var lastResults time.Time

	send := func(event Event, want func(Scope) bool) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, scope := range clients {
			if want != nil && !want(scope) {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}
	broadcast := func(event Event) { send(event, nil) }

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.scope

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.artifactCh:
			var typ string
			switch req.kind {
			case "created", "updated", "deleted":
				typ = "artifact." + req.kind
			default:
				continue
			}
			data := ArtifactEvent{Path: req.path}
			a, err := address.Decode(req.path)
			decoded := err == nil
			if decoded {
				data.Idx, data.Model, data.Prompt, data.Timestamp, data.Filename = a.Idx, a.Model, a.Prompt, a.Timestamp, a.Filename
			}
			send(Event{Type: typ, Data: data}, func(s Scope) bool { return s.Matches(data, decoded) })

			now := time.Now()
			if now.Sub(lastResults) >= b.resultsMin {
				lastResults = now
				broadcast(Event{Type: "results.updated", Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client receiving every event and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeScope(Scope{})
}

// SubscribeScope adds a client whose artifact events are limited to scope.
func (b *Broker) SubscribeScope(scope Scope) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, scope: scope}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishArtifactEvent publishes an artifact change and a throttled
// results.updated event. kind is created, updated or deleted; path is
// relative to the results root.
func (b *Broker) PublishArtifactEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.artifactCh <- artifactEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The idx, model,
// prompt and filename query parameters narrow the artifact events sent.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribeScope(ScopeFromQuery(r.URL.Query()))
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
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
