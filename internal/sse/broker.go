// Package sse streams course directory changes to HTTP clients as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/coursesync/internal/resource"
)

// Change kinds reported by the catalog watcher.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ChangeData is the payload of the resource.* events.
type ChangeData struct {
	Path     string `json:"path"`
	Category string `json:"category,omitempty"`
}

type change struct {
	kind string
	data ChangeData
}

// merge folds a later change of the same file into an earlier one. An
// editor that replaces a file (delete, then create) reads as one update,
// and a file created and then written stays created.
func merge(prev, next string) string {
	switch {
	case prev == KindDeleted && next == KindCreated:
		return KindUpdated
	case prev == KindCreated && next == KindUpdated:
		return KindCreated
	default:
		return next
	}
}

// subscriber is one connected client. An empty category set receives
// changes of every category.
type subscriber struct {
	ch         chan []byte
	categories map[string]struct{}
}

func (s *subscriber) wants(category string) bool {
	if len(s.categories) == 0 || category == "" {
		return true
	}
	_, ok := s.categories[category]
	return ok
}

type subscribeReq struct {
	ch         chan []byte
	categories []string
}

// Option configures a Broker.
type Option func(*Broker)

// WithCatalogThrottle emits catalog.updated at most once per d.
func WithCatalogThrottle(d time.Duration) Option {
	return func(b *Broker) { b.catalogMin = d }
}

// WithSettle holds changes for d and sends one event per file for
// everything that happened to it in that window. Zero sends immediately.
func WithSettle(d time.Duration) Option {
	return func(b *Broker) { b.settle = d }
}

// WithRegistry resolves category aliases in ?category= filters.
func WithRegistry(reg *resource.Registry) Option {
	return func(b *Broker) { b.reg = reg }
}

// Broker fans course changes out to SSE clients.
//
// A single loop goroutine owns the subscribers, the pending changes and
// the catalog throttle timestamp. Public methods talk to it over channels.
type Broker struct {
	catalogMin time.Duration
	settle     time.Duration
	reg        *resource.Registry

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan change
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its loop.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		catalogMin:    2 * time.Second,
		settle:        150 * time.Millisecond,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan change, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	subs := make(map[chan []byte]*subscriber)
	var lastCatalog time.Time

	pending := make(map[string]*change)
	var order []string
	var flushCh <-chan time.Time

	send := func(event Event, category string) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for _, s := range subs {
			if !s.wants(category) {
				continue
			}
			select {
			case s.ch <- raw:
			default:
				// Slow client, drop rather than stall every other one.
			}
		}
	}

	emit := func(changes []change) {
		for _, c := range changes {
			send(Event{Type: "resource." + c.kind, Data: c.data}, c.data.Category)
		}
		if now := time.Now(); now.Sub(lastCatalog) >= b.catalogMin {
			lastCatalog = now
			send(Event{Type: "catalog.updated", Data: map[string]string{}}, "")
		}
	}

	flush := func() {
		batch := make([]change, 0, len(order))
		for _, p := range order {
			batch = append(batch, *pending[p])
		}
		clear(pending)
		order = order[:0]
		flushCh = nil
		if len(batch) > 0 {
			emit(batch)
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			s := &subscriber{ch: req.ch}
			if len(req.categories) > 0 {
				s.categories = make(map[string]struct{}, len(req.categories))
				for _, c := range req.categories {
					s.categories[c] = struct{}{}
				}
			}
			subs[req.ch] = s

		case ch := <-b.unsubscribeCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			send(event, "")

		case c := <-b.changeCh:
			if b.settle <= 0 {
				emit([]change{c})
				continue
			}
			if prev, ok := pending[c.data.Path]; ok {
				prev.kind = merge(prev.kind, c.kind)
				if c.data.Category != "" {
					prev.data.Category = c.data.Category
				}
			} else {
				pending[c.data.Path] = &c
				order = append(order, c.data.Path)
			}
			if flushCh == nil {
				flushCh = time.After(b.settle)
			}

		case <-flushCh:
			flush()

		case resp := <-b.countReqCh:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscriber channel. Changes still
// settling are dropped.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client that receives changes of the given categories,
// or of every category when none are given.
func (b *Broker) Subscribe(categories ...string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- subscribeReq{ch: ch, categories: categories}:
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

// Publish sends an event to every client regardless of its filter.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishChange queues a file change. Unknown kinds are dropped.
func (b *Broker) PublishChange(kind, path, category string) {
	switch kind {
	case KindCreated, KindUpdated, KindDeleted:
	default:
		return
	}
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- change{kind: kind, data: ChangeData{Path: path, Category: category}}:
	case <-b.stopped:
	}
}

// categories turns ?category= values (repeated or comma separated) into
// canonical category names.
func (b *Broker) categories(values []string) ([]string, error) {
	var out []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if b.reg == nil {
				out = append(out, name)
				continue
			}
			variant, err := b.reg.Lookup(name)
			if err != nil {
				return nil, err
			}
			out = append(out, string(variant.Descriptor().Category))
		}
	}
	return out, nil
}

// ServeHTTP is the SSE endpoint handler (GET /events[?category=a,page]).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	cats, err := b.categories(r.URL.Query()["category"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(cats...)
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
