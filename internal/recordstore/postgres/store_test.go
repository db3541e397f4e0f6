package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"github.com/dmitrijs2005/drivesync/internal/recordstore/notify"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *notify.Local) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	n := notify.NewLocal()
	s := New(db, n, nil)
	s.now = func() time.Time { return fixedNow }
	s.newID = func() string { return "rec-1" }
	return s, mock, n
}

func TestInsert_StampsAndPublishes(t *testing.T) {
	s, mock, n := newStoreWithMock(t)
	ctx := context.Background()

	signals, cancel, err := n.Subscribe(ctx, "files")
	require.NoError(t, err)
	defer cancel()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO records (collection, id, doc, created_at, updated_at)`)).
		WithArgs("files", "rec-1",
			`{"createdAt":"2024-05-01T10:00:00.000000000Z","name":"Projects","ownerId":"u1","updatedAt":"2024-05-01T10:00:00.000000000Z"}`,
			fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.Insert(ctx, "files", recordstore.Document{"name": "Projects", "ownerId": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "rec-1", id)
	assert.Len(t, signals, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DBError(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	mock.ExpectExec(`INSERT INTO records`).WillReturnError(errors.New("db is down"))

	_, err := s.Insert(context.Background(), "files", recordstore.Document{"name": "x"})
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db is down`, err.Error())
}

func TestGet_NotFound(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM records WHERE collection = $1 AND id = $2`)).
		WithArgs("files", "nope").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "files", "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_Success(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	mock.ExpectQuery(`SELECT doc FROM records`).
		WithArgs("files", "f1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow([]byte(`{"name":"a","isStarred":true}`)))

	rec, err := s.Get(context.Background(), "files", "f1")
	require.NoError(t, err)
	assert.Equal(t, "f1", rec.ID)
	assert.Equal(t, true, rec.Fields["isStarred"])
}

func TestUpdateFields_MergesInTransaction(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM records WHERE collection = $1 AND id = $2 FOR UPDATE`)).
		WithArgs("files", "f1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(
			[]byte(`{"name":"a","isStarred":false,"createdAt":"2024-01-01T00:00:00.000000000Z"}`)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE records SET doc = $3::jsonb, updated_at = $4`)).
		WithArgs("files", "f1",
			`{"createdAt":"2024-01-01T00:00:00.000000000Z","isStarred":true,"name":"a","updatedAt":"2024-05-01T10:00:00.000000000Z"}`,
			fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.UpdateFields(context.Background(), "files", "f1", recordstore.Document{"isStarred": true, "createdAt": "forged"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFields_NotFoundRollsBack(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT doc FROM records`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := s.UpdateFields(context.Background(), "files", "gone", recordstore.Document{"name": "x"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_PublishesOnlyWhenRowRemoved(t *testing.T) {
	s, mock, n := newStoreWithMock(t)
	ctx := context.Background()

	signals, cancel, err := n.Subscribe(ctx, "files")
	require.NoError(t, err)
	defer cancel()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM records WHERE collection = $1 AND id = $2`)).
		WithArgs("files", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Delete(ctx, "files", "ghost"))
	assert.Len(t, signals, 0)

	mock.ExpectExec(`DELETE FROM records`).
		WithArgs("files", "f1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Delete(ctx, "files", "f1"))
	assert.Len(t, signals, 1)
}

func TestLiveQuery_RequeriesOnSignal(t *testing.T) {
	s, mock, n := newStoreWithMock(t)
	ctx := context.Background()

	q := recordstore.Query{
		Collection: "files",
		Filters:    []recordstore.Filter{{Field: "ownerId", Value: "u1"}},
		Sort:       []recordstore.SortKey{{Field: "name"}},
	}

	mock.ExpectQuery(`SELECT id, doc FROM records WHERE collection = \$1 AND doc @> \$2::jsonb`).
		WithArgs("files", `{"ownerId":"u1"}`, "name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}))
	mock.ExpectQuery(`SELECT id, doc FROM records`).
		WithArgs("files", `{"ownerId":"u1"}`, "name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}).
			AddRow("a", []byte(`{"name":"a","ownerId":"u1"}`)).
			AddRow("b", []byte(`{"name":"b","ownerId":"u1"}`)))

	sub, err := s.LiveQuery(ctx, q)
	require.NoError(t, err)
	defer sub.Close()

	first := <-sub.Events()
	require.NoError(t, first.Err)
	assert.Empty(t, first.Records)

	require.NoError(t, n.Publish(ctx, "files"))

	select {
	case snap := <-sub.Events():
		require.NoError(t, snap.Err)
		require.Len(t, snap.Records, 2)
		assert.Equal(t, "a", snap.Records[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no push after change signal")
	}
}

func TestLiveQuery_QueryFailureEndsSubscription(t *testing.T) {
	s, mock, n := newStoreWithMock(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, doc FROM records`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}))
	mock.ExpectQuery(`SELECT id, doc FROM records`).
		WillReturnError(errors.New("permission denied for table records"))

	sub, err := s.LiveQuery(ctx, recordstore.Query{Collection: "files"})
	require.NoError(t, err)
	<-sub.Events()

	require.NoError(t, n.Publish(ctx, "files"))

	select {
	case snap := <-sub.Events():
		assert.ErrorIs(t, snap.Err, common.ErrSubscriptionLost)
	case <-time.After(time.Second):
		t.Fatal("no terminal snapshot")
	}
	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestRunMigrations_UsesEmbeddedDir(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, RunMigrations(context.Background(), db))
	assert.Equal(t, ".", gotDir)

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	assert.EqualError(t, RunMigrations(context.Background(), db), "boom")
}
