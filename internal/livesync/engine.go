// Package livesync mirrors a live record store query into a local, ordered,
// read-only collection and writes changes through to the store.
//
// The local collection is replaced wholesale by every push and is never
// written by any other path: a write is visible only once the store echoes
// it back.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
)

// State of an engine's subscription.
type State int

const (
	// Idle: no subscription.
	Idle State = iota
	// Loading: subscribed, first snapshot not yet received.
	Loading
	// Live: the collection reflects the latest push.
	Live
	// Lost: the subscription ended abnormally; the collection is stale.
	Lost
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Live:
		return "live"
	case Lost:
		return "lost"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Decoder turns a pushed record into a local item.
type Decoder[T any] func(recordstore.Record) (T, error)

type Option[T any] func(*Engine[T])

// WithOrder sorts every snapshot on the client, after the store's own sort.
func WithOrder[T any](cmp func(a, b T) int) Option[T] {
	return func(e *Engine[T]) { e.cmp = cmp }
}

func WithLogger[T any](l logging.Logger) Option[T] {
	return func(e *Engine[T]) { e.log = logging.OrNop(l) }
}

type entry[T any] struct {
	id   string
	item T
}

// Engine holds at most one live subscription at a time.
type Engine[T any] struct {
	store      recordstore.Store
	collection string
	decode     Decoder[T]
	cmp        func(a, b T) int
	log        logging.Logger

	// subMu serializes Subscribe and Close.
	subMu  sync.Mutex
	sub    recordstore.Subscription
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.RWMutex
	entries []entry[T]
	state   State
	err     error
	query   recordstore.Query

	changes chan struct{}
}

func New[T any](store recordstore.Store, collection string, decode Decoder[T], opts ...Option[T]) *Engine[T] {
	e := &Engine[T]{
		store:      store,
		collection: collection,
		decode:     decode,
		log:        logging.Nop{},
		changes:    make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With("module", "livesync", "collection", collection)
	return e
}

// Subscribe replaces the current query. The previous subscription is
// released, and its consumer has exited, before the new one is opened; the
// local collection is cleared in between so two query epochs never mix.
//
// The subscription outlives ctx's deadline; it ends with Close or the next
// Subscribe. ctx values (credentials, trace) are kept.
func (e *Engine[T]) Subscribe(ctx context.Context, filters []recordstore.Filter, sort []recordstore.SortKey) error {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	e.stopLocked()

	q := recordstore.Query{Collection: e.collection, Filters: filters, Sort: sort}

	e.mu.Lock()
	e.entries = nil
	e.state = Loading
	e.err = nil
	e.query = q
	e.mu.Unlock()
	e.notify()

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := e.store.LiveQuery(subCtx, q)
	if err != nil {
		cancel()
		e.setState(Idle, nil)
		return fmt.Errorf("subscribe %s: %w", e.collection, err)
	}

	done := make(chan struct{})
	e.sub, e.cancel, e.done = sub, cancel, done
	go e.consume(subCtx, sub, done)

	e.log.Debug(ctx, "subscribed", "filters", len(filters))
	return nil
}

// Close ends the subscription and clears all local state.
func (e *Engine[T]) Close() {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	e.stopLocked()

	e.mu.Lock()
	e.entries = nil
	e.state = Idle
	e.err = nil
	e.query = recordstore.Query{}
	e.mu.Unlock()
	e.notify()
}

// stopLocked closes the active subscription and waits for its consumer.
// Caller holds subMu.
func (e *Engine[T]) stopLocked() {
	if e.sub == nil {
		return
	}
	e.cancel()
	if err := e.sub.Close(); err != nil {
		e.log.Warn(context.Background(), "closing subscription", "error", err)
	}
	<-e.done
	e.sub, e.cancel, e.done = nil, nil, nil
}

func (e *Engine[T]) consume(ctx context.Context, sub recordstore.Subscription, done chan struct{}) {
	defer close(done)

	for snap := range sub.Events() {
		if snap.Err != nil {
			e.lose(ctx, snap.Err)
			return
		}
		e.apply(ctx, snap.Records)
	}

	// The channel closed without a terminal error. That is expected only
	// when we closed it ourselves.
	if ctx.Err() == nil {
		e.lose(ctx, errors.New("subscription ended by store"))
	}
}

func (e *Engine[T]) apply(ctx context.Context, records []recordstore.Record) {
	next := make([]entry[T], 0, len(records))
	for _, r := range records {
		item, err := e.decode(r)
		if err != nil {
			e.log.Warn(ctx, "skipping undecodable record", "id", r.ID, "error", err)
			continue
		}
		next = append(next, entry[T]{id: r.ID, item: item})
	}
	if e.cmp != nil {
		slices.SortStableFunc(next, func(a, b entry[T]) int { return e.cmp(a.item, b.item) })
	}

	e.mu.Lock()
	e.entries = next
	e.state = Live
	e.err = nil
	e.mu.Unlock()
	e.notify()

	e.log.Debug(ctx, "snapshot applied", "records", len(next))
}

func (e *Engine[T]) lose(ctx context.Context, err error) {
	var se *common.SubscriptionError
	if !errors.As(err, &se) {
		err = &common.SubscriptionError{Collection: e.collection, Err: err}
	}
	e.log.Warn(ctx, "subscription lost", "error", err)
	e.setState(Lost, err)
}

func (e *Engine[T]) setState(s State, err error) {
	e.mu.Lock()
	e.state = s
	e.err = err
	e.mu.Unlock()
	e.notify()
}

func (e *Engine[T]) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

// Changes signals that Items, State or Err may have changed. Signals
// coalesce; readers re-read state after each one.
func (e *Engine[T]) Changes() <-chan struct{} { return e.changes }

// Items returns a copy of the local collection in display order.
func (e *Engine[T]) Items() []T {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]T, len(e.entries))
	for i, en := range e.entries {
		out[i] = en.item
	}
	return out
}

// Find looks id up in the local collection.
func (e *Engine[T]) Find(id string) (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, en := range e.entries {
		if en.id == id {
			return en.item, true
		}
	}
	var zero T
	return zero, false
}

func (e *Engine[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.entries)
}

func (e *Engine[T]) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Err returns the SubscriptionError while State is Lost.
func (e *Engine[T]) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// Query returns the active query.
func (e *Engine[T]) Query() recordstore.Query {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.query
}

// Insert writes a new record and returns its id once the store has
// acknowledged it. The record shows up locally with a later push.
func (e *Engine[T]) Insert(ctx context.Context, fields recordstore.Document) (string, error) {
	id, err := e.store.Insert(ctx, e.collection, fields)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", e.collection, err)
	}
	return id, nil
}

// Update writes only the given fields. It fails with common.ErrorNotFound
// when the record no longer exists.
func (e *Engine[T]) Update(ctx context.Context, id string, fields recordstore.Document) error {
	if err := e.store.UpdateFields(ctx, e.collection, id, fields); err != nil {
		return fmt.Errorf("update %s/%s: %w", e.collection, id, err)
	}
	return nil
}

// Delete removes a record; deleting an absent id succeeds.
func (e *Engine[T]) Delete(ctx context.Context, id string) error {
	if err := e.store.Delete(ctx, e.collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", e.collection, id, err)
	}
	return nil
}
