// Package recordstore defines the remote record store drivesync synchronizes
// against: owner-scoped document collections with equality-filtered,
// sorted live queries that push the full result set on every change.
package recordstore

import (
	"context"
	"time"
)

// Document is a record's field set in JSON-compatible form.
type Document map[string]any

// Fields the store maintains itself.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldOwnerID   = "ownerId"
	FieldParentID  = "parentId"
)

// TimestampLayout is the fixed-width UTC layout of createdAt/updatedAt, so
// that lexical order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Filter is an equality predicate. A nil Value matches null or absent fields.
type Filter struct {
	Field string
	Value any
}

// SortKey orders results by one field.
type SortKey struct {
	Field string
	Desc  bool
}

type Query struct {
	Collection string
	Filters    []Filter
	Sort       []SortKey
}

// FilterValue returns the value of the equality filter on field, if any.
func (q Query) FilterValue(field string) (any, bool) {
	for _, f := range q.Filters {
		if f.Field == field {
			return f.Value, true
		}
	}
	return nil, false
}

type Record struct {
	ID     string
	Fields Document
}

// Snapshot is one push of a live query. A non-nil Err ends the
// subscription; Records is then empty and must not be taken as "no results".
type Snapshot struct {
	Records []Record
	Err     error
}

// Subscription is a cancelable stream of snapshots. The channel is closed
// once the subscription ends for any reason.
type Subscription interface {
	Events() <-chan Snapshot
	Close() error
}

// Store is implemented by the in-process, PostgreSQL and gRPC backends.
type Store interface {
	LiveQuery(ctx context.Context, q Query) (Subscription, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Insert(ctx context.Context, collection string, fields Document) (string, error)
	UpdateFields(ctx context.Context, collection, id string, fields Document) error
	Delete(ctx context.Context, collection, id string) error
}
