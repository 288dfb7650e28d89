package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hpungsan/glyco/internal/record"
)

// Subscription is a handle for a registered snapshot callback.
type Subscription struct {
	store     *Store
	fn        func([]record.Record)
	cancelled atomic.Bool
}

// Subscribe registers fn and immediately delivers the current snapshot.
// fn then receives the full snapshot after every mutation, in mutation order.
// Each delivery gets its own slice.
//
// fn runs while the store is locked: it must not call back into the Store.
func (s *Store) Subscribe(fn func([]record.Record)) *Subscription {
	sub := &Subscription{store: s, fn: fn}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subsMu.Lock()
	s.subs = append(s.subs, sub)
	s.subsMu.Unlock()

	fn(s.snapshotLocked())
	return sub
}

// Cancel unregisters the callback. Mutations that begin after Cancel returns
// do not reach it, but a delivery already running on another goroutine may
// still complete; callers that need a hard stop keep their own closed flag.
// Cancel is idempotent and safe to call from inside the callback.
func (sub *Subscription) Cancel() {
	if sub.cancelled.Swap(true) {
		return
	}
	s := sub.store
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, other := range s.subs {
		if other == sub {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			break
		}
	}
}

// notifyLocked delivers the current snapshot to every live subscriber.
// Caller must hold mu.
func (s *Store) notifyLocked() {
	s.subsMu.Lock()
	subs := append([]*Subscription(nil), s.subs...)
	s.subsMu.Unlock()
	if len(subs) == 0 {
		return
	}

	base := s.snapshotLocked()
	last := len(subs) - 1
	for i, sub := range subs {
		if sub.cancelled.Load() {
			continue
		}
		snap := base
		if i < last {
			snap = append([]record.Record(nil), base...)
		}
		sub.fn(snap)
	}
}

// Changes returns a channel carrying the latest snapshot. The current
// snapshot is available immediately. A slow reader only sees the most
// recent snapshot. The channel closes when ctx is done.
func (s *Store) Changes(ctx context.Context) <-chan []record.Record {
	ch := make(chan []record.Record, 1)
	var (
		mu     sync.Mutex
		closed bool
	)

	sub := s.Subscribe(func(snap []record.Record) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case <-ch:
		default:
		}
		ch <- snap
	})

	go func() {
		<-ctx.Done()
		sub.Cancel()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}
