package notify

import (
	"context"
	"sync"
)

// Local is an in-process Notifier.
type Local struct {
	mu        sync.Mutex
	listeners map[string]map[chan struct{}]struct{}
}

var _ Notifier = (*Local)(nil)

func NewLocal() *Local {
	return &Local{listeners: make(map[string]map[chan struct{}]struct{})}
}

func (l *Local) Publish(_ context.Context, collection string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.listeners[collection] {
		signal(ch)
	}
	return nil
}

func (l *Local) Subscribe(_ context.Context, collection string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)

	l.mu.Lock()
	set, ok := l.listeners[collection]
	if !ok {
		set = make(map[chan struct{}]struct{})
		l.listeners[collection] = set
	}
	set[ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.listeners[collection], ch)
			l.mu.Unlock()
		})
	}
	return ch, cancel, nil
}

func (l *Local) Close() error { return nil }
