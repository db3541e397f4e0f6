package recordstore

import (
	"context"
	"sync"
)

// Feed is a Subscription building block. It holds at most one undelivered
// snapshot: a newer push replaces an unread one, so producers never block on
// slow readers and readers only ever see whole snapshots.
type Feed struct {
	mu      sync.Mutex
	events  chan Snapshot
	done    chan struct{}
	closed  bool
	onClose []func()
}

var _ Subscription = (*Feed)(nil)

func NewFeed() *Feed {
	return &Feed{
		events: make(chan Snapshot, 1),
		done:   make(chan struct{}),
	}
}

func (f *Feed) Events() <-chan Snapshot { return f.events }

// Done is closed when the feed ends.
func (f *Feed) Done() <-chan struct{} { return f.done }

// OnClose registers fn to run once the feed ends. If it already has, fn runs
// immediately.
func (f *Feed) OnClose(fn func()) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		fn()
		return
	}
	f.onClose = append(f.onClose, fn)
	f.mu.Unlock()
}

// CloseWith ends the feed when ctx is done.
func (f *Feed) CloseWith(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { _ = f.Close() })
	f.OnClose(func() { stop() })
}

// Push delivers snap, replacing any unread snapshot. It reports false once
// the feed has ended.
func (f *Feed) Push(snap Snapshot) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.replace(snap)
	return true
}

// Fail delivers a terminal error snapshot and ends the feed.
func (f *Feed) Fail(err error) {
	f.end(&Snapshot{Err: err})
}

func (f *Feed) Close() error {
	f.end(nil)
	return nil
}

func (f *Feed) end(last *Snapshot) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if last != nil {
		f.replace(*last)
	}
	f.closed = true
	close(f.events)
	close(f.done)
	hooks := f.onClose
	f.onClose = nil
	f.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// replace swaps the pending snapshot. Caller holds f.mu.
func (f *Feed) replace(snap Snapshot) {
	select {
	case <-f.events:
	default:
	}
	f.events <- snap
}
