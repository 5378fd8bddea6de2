package observer

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Hub fans state frames out to observer sessions. A slow session only ever
// sees the newest frame; older ones are dropped.
type Hub struct {
	mu   sync.Mutex
	subs map[string]*session

	nextID  atomic.Uint64
	dropped atomic.Uint64
}

type session struct {
	out   chan []byte
	every uint64
}

func NewHub() *Hub {
	return &Hub{subs: map[string]*session{}}
}

// Join registers a session and returns its id and frame channel.
func (h *Hub) Join(everyTicks int) (string, <-chan []byte) {
	id := fmt.Sprintf("O%d", h.nextID.Add(1))
	s := &session{out: make(chan []byte, 4), every: normalizeEvery(everyTicks)}
	h.mu.Lock()
	h.subs[id] = s
	h.mu.Unlock()
	return id, s.out
}

// Leave removes a session and closes its channel.
func (h *Hub) Leave(id string) {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		close(s.out)
	}
}

// Close ends every session. Later joins still work.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = map[string]*session{}
	h.mu.Unlock()
	for _, s := range subs {
		close(s.out)
	}
}

func (h *Hub) SetEvery(id string, everyTicks int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		s.every = normalizeEvery(everyTicks)
	}
}

func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped counts frames discarded for slow sessions.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Publish hands frame b for tick to every session due on that tick. It never
// blocks the caller.
func (h *Hub) Publish(tick uint64, b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if tick%s.every != 0 {
			continue
		}
		if !sendLatest(s.out, b) {
			h.dropped.Add(1)
		}
	}
}

// sendLatest enqueues b, evicting the oldest queued frame when full. It
// reports false when a frame was dropped.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return false
}

func normalizeEvery(n int) uint64 {
	if n <= 0 {
		return 1
	}
	if n > 1200 {
		return 1200
	}
	return uint64(n)
}
