// Package postgres is the record store backend used by the server: one
// JSONB table holding every collection, live queries re-evaluated on change
// signals from a notify.Notifier.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/dbx"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"github.com/dmitrijs2005/drivesync/internal/recordstore/notify"
	"github.com/dmitrijs2005/drivesync/internal/recordstore/postgres/migrations"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("drivesync-recordstore")

type Store struct {
	db       *sql.DB
	notifier notify.Notifier
	log      logging.Logger

	mu        sync.Mutex
	lastStamp time.Time
	now       func() time.Time
	newID     func() string
}

var _ recordstore.Store = (*Store)(nil)

// New wraps an open database. Call RunMigrations before first use.
func New(db *sql.DB, notifier notify.Notifier, log logging.Logger) *Store {
	return &Store{
		db:       db,
		notifier: notifier,
		log:      logging.OrNop(log).With("module", "recordstore.postgres"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Open connects through the pgx stdlib driver and pings the server.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

func (s *Store) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now().UTC()
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = t
	return t
}

func (s *Store) LiveQuery(ctx context.Context, q recordstore.Query) (recordstore.Subscription, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("live query: empty collection: %w", common.ErrorValidation)
	}

	// Listen before the first read so a write landing in between still
	// triggers a re-query.
	signals, stopSignals, err := s.notifier.Subscribe(ctx, q.Collection)
	if err != nil {
		return nil, fmt.Errorf("live query: %w", err)
	}

	recs, err := s.query(ctx, q)
	if err != nil {
		stopSignals()
		return nil, err
	}

	feed := recordstore.NewFeed()
	feed.OnClose(stopSignals)
	feed.Push(recordstore.Snapshot{Records: recs})
	feed.CloseWith(ctx)

	go s.follow(ctx, q, feed, signals)

	s.log.Debug(ctx, "live query opened", "collection", q.Collection, "filters", len(q.Filters))
	return feed, nil
}

func (s *Store) follow(ctx context.Context, q recordstore.Query, feed *recordstore.Feed, signals <-chan struct{}) {
	for {
		select {
		case <-feed.Done():
			return
		case <-signals:
			recs, err := s.query(ctx, q)
			if err != nil {
				select {
				case <-feed.Done():
					return
				default:
				}
				s.log.Warn(ctx, "live query failed", "collection", q.Collection, "error", err)
				feed.Fail(&common.SubscriptionError{Collection: q.Collection, Err: err})
				return
			}
			feed.Push(recordstore.Snapshot{Records: recs})
		}
	}
}

func (s *Store) query(ctx context.Context, q recordstore.Query) ([]recordstore.Record, error) {
	ctx, span := tracer.Start(ctx, "postgres.query",
		trace.WithAttributes(
			attribute.String("collection", q.Collection),
			attribute.Int("filters", len(q.Filters)),
		),
	)
	defer span.End()

	query, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []recordstore.Record
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		result = append(result, recordstore.Record{ID: id, Fields: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("records", len(result)))
	return result, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (recordstore.Record, error) {
	ctx, span := tracer.Start(ctx, "postgres.get", trace.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("id", id),
	))
	defer span.End()

	doc, err := getDoc(ctx, s.db, collection, id, false)
	if err != nil {
		return recordstore.Record{}, err
	}
	return recordstore.Record{ID: id, Fields: doc}, nil
}

func getDoc(ctx context.Context, db dbx.DBTX, collection, id string, forUpdate bool) (recordstore.Document, error) {
	query := `SELECT doc FROM records WHERE collection = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	err := db.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return decodeDoc(raw)
}

func (s *Store) Insert(ctx context.Context, collection string, fields recordstore.Document) (string, error) {
	if collection == "" {
		return "", fmt.Errorf("insert: empty collection: %w", common.ErrorValidation)
	}
	ctx, span := tracer.Start(ctx, "postgres.insert", trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	doc, err := recordstore.Normalize(fields)
	if err != nil {
		return "", err
	}

	id := s.newID()
	ts := s.stamp()
	doc[recordstore.FieldCreatedAt] = recordstore.FormatTimestamp(ts)
	doc[recordstore.FieldUpdatedAt] = recordstore.FormatTimestamp(ts)

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	query := `INSERT INTO records (collection, id, doc, created_at, updated_at) VALUES ($1, $2, $3::jsonb, $4, $4)`
	if _, err := s.db.ExecContext(ctx, query, collection, id, string(raw), ts); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("db error: %w", err)
	}

	span.SetAttributes(attribute.String("id", id))
	s.publish(ctx, collection)
	return id, nil
}

func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields recordstore.Document) error {
	ctx, span := tracer.Start(ctx, "postgres.update_fields", trace.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("id", id),
	))
	defer span.End()

	patch, err := recordstore.Normalize(fields)
	if err != nil {
		return err
	}
	delete(patch, recordstore.FieldCreatedAt)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *dbx.Tx) error {
		doc, err := getDoc(ctx, tx, collection, id, true)
		if err != nil {
			return err
		}
		for k, v := range patch {
			doc[k] = v
		}
		ts := s.stamp()
		doc[recordstore.FieldUpdatedAt] = recordstore.FormatTimestamp(ts)

		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE records SET doc = $3::jsonb, updated_at = $4 WHERE collection = $1 AND id = $2`,
			collection, id, string(raw), ts)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		tx.AfterCommit(func(ctx context.Context) { s.publish(ctx, collection) })
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.delete", trace.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("id", id),
	))
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n > 0 {
		s.publish(ctx, collection)
	}
	return nil
}

// publish signals listeners after a committed write. A failed publish is
// logged only; the write itself stands.
func (s *Store) publish(ctx context.Context, collection string) {
	if err := s.notifier.Publish(ctx, collection); err != nil {
		s.log.Warn(ctx, "change notification failed", "collection", collection, "error", err)
	}
}

func decodeDoc(raw []byte) (recordstore.Document, error) {
	var doc recordstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if doc == nil {
		doc = recordstore.Document{}
	}
	return doc, nil
}
