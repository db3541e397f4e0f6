// Package memory is an in-process record store with live queries. It backs
// tests and single-process setups, and serves as the reference behavior for
// the PostgreSQL store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"github.com/google/uuid"
)

type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides record id generation.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = logging.OrNop(l) }
}

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]recordstore.Document
	subs        map[*subscription]struct{}
	lastStamp   time.Time

	now   func() time.Time
	newID func() string
	log   logging.Logger
}

var _ recordstore.Store = (*Store)(nil)

func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]map[string]recordstore.Document),
		subs:        make(map[*subscription]struct{}),
		now:         time.Now,
		newID:       uuid.NewString,
		log:         logging.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("module", "recordstore.memory")
	return s
}

// stamp returns a strictly increasing timestamp so updatedAt ordering is
// total even on coarse clocks. Caller holds s.mu.
func (s *Store) stamp() string {
	t := s.now().UTC()
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = t
	return recordstore.FormatTimestamp(t)
}

func (s *Store) LiveQuery(ctx context.Context, q recordstore.Query) (recordstore.Subscription, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("live query: empty collection: %w", common.ErrorValidation)
	}
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return nil, err
	}
	q.Filters = filters

	sub := &subscription{Feed: recordstore.NewFeed(), query: q}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	sub.Push(recordstore.Snapshot{Records: s.evaluate(q)})
	s.mu.Unlock()

	sub.OnClose(func() { s.remove(sub) })
	sub.CloseWith(ctx)

	s.log.Debug(ctx, "live query opened", "collection", q.Collection, "filters", len(q.Filters))
	return sub, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (recordstore.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return recordstore.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, common.ErrorNotFound)
	}
	return recordstore.Record{ID: id, Fields: doc.Clone()}, nil
}

func (s *Store) Insert(ctx context.Context, collection string, fields recordstore.Document) (string, error) {
	if collection == "" {
		return "", fmt.Errorf("insert: empty collection: %w", common.ErrorValidation)
	}
	doc, err := recordstore.Normalize(fields)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	ts := s.stamp()
	doc[recordstore.FieldCreatedAt] = ts
	doc[recordstore.FieldUpdatedAt] = ts

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]recordstore.Document)
		s.collections[collection] = coll
	}
	coll[id] = doc
	s.notify(collection)

	s.log.Debug(ctx, "record inserted", "collection", collection, "id", id)
	return id, nil
}

func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields recordstore.Document) error {
	patch, err := recordstore.Normalize(fields)
	if err != nil {
		return err
	}
	delete(patch, recordstore.FieldCreatedAt)

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, common.ErrorNotFound)
	}
	for k, v := range patch {
		doc[k] = v
	}
	doc[recordstore.FieldUpdatedAt] = s.stamp()
	s.notify(collection)

	s.log.Debug(ctx, "record updated", "collection", collection, "id", id, "fields", len(patch))
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return nil
	}
	delete(s.collections[collection], id)
	s.notify(collection)

	s.log.Debug(ctx, "record deleted", "collection", collection, "id", id)
	return nil
}

// Revoke ends every live query scoped to ownerID with a SubscriptionError,
// the way a permission change on the remote store would.
func (s *Store) Revoke(ownerID string, cause error) {
	s.mu.Lock()
	var victims []*subscription
	for sub := range s.subs {
		if v, ok := sub.query.FilterValue(recordstore.FieldOwnerID); ok && v == ownerID {
			victims = append(victims, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range victims {
		sub.Fail(&common.SubscriptionError{Collection: sub.query.Collection, Err: cause})
	}
}

// Len reports how many records a collection holds.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

// evaluate runs q against current state. Caller holds s.mu.
func (s *Store) evaluate(q recordstore.Query) []recordstore.Record {
	var out []recordstore.Record
	for id, doc := range s.collections[q.Collection] {
		if recordstore.Matches(doc, q.Filters) {
			out = append(out, recordstore.Record{ID: id, Fields: doc.Clone()})
		}
	}
	recordstore.SortRecords(out, q.Sort)
	return out
}

// notify pushes a fresh snapshot to every live query on collection. Caller
// holds s.mu, which also orders pushes across writers.
func (s *Store) notify(collection string) {
	for sub := range s.subs {
		if sub.query.Collection == collection {
			sub.Push(recordstore.Snapshot{Records: s.evaluate(sub.query)})
		}
	}
}

func (s *Store) remove(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

func normalizeFilters(in []recordstore.Filter) ([]recordstore.Filter, error) {
	out := make([]recordstore.Filter, len(in))
	for i, f := range in {
		v, err := recordstore.NormalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		out[i] = recordstore.Filter{Field: f.Field, Value: v}
	}
	return out, nil
}
