// Package presence tracks which users have an open websocket and fans the
// online list out to subscribers.
package presence

import (
	"context"
	"sort"
	"sync"
)

// Registry counts open connections per user. A user with several tabs is
// online until the last one leaves. Subscribers receive the online list
// whenever a user comes online or goes offline.
type Registry struct {
	mu     sync.Mutex
	counts map[int64]int
	subs   map[int]chan []int64
	nextID int
	closed bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counts: make(map[int64]int),
		subs:   make(map[int]chan []int64),
	}
}

// Join records a connection of userID and returns the function that
// records its end. Calling leave more than once has no further effect.
func (r *Registry) Join(userID int64) (leave func()) {
	r.mu.Lock()
	r.counts[userID]++
	if r.counts[userID] == 1 {
		r.publishLocked()
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.leave(userID) })
	}
}

func (r *Registry) leave(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counts[userID]--
	if r.counts[userID] <= 0 {
		delete(r.counts, userID)
		r.publishLocked()
	}
}

// Online returns the ids of online users in ascending order.
func (r *Registry) Online() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineLocked()
}

func (r *Registry) onlineLocked() []int64 {
	ids := make([]int64, 0, len(r.counts))
	for id := range r.counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Subscribe returns a channel receiving the online list after every
// change, starting with the current list. A slow subscriber only sees the
// latest list. The channel is closed by cancel or when Run returns.
func (r *Registry) Subscribe() (<-chan []int64, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan []int64, 1)
	if r.closed {
		close(ch)
		return ch, func() {}
	}

	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	ch <- r.onlineLocked()

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
	}
}

// publishLocked replaces any undelivered list with the current one.
func (r *Registry) publishLocked() {
	online := r.onlineLocked()
	for _, ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Run blocks until ctx is done and then closes every subscription, which
// ends the websocket writers. It always returns nil.
func (r *Registry) Run(ctx context.Context) error {
	<-ctx.Done()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
	return nil
}
