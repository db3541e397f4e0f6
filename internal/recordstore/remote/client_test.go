package remote

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/drivesync/internal/auth"
	"github.com/dmitrijs2005/drivesync/internal/blobstore"
	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/drive"
	"github.com/dmitrijs2005/drivesync/internal/livesync"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/models"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"github.com/dmitrijs2005/drivesync/internal/recordstore/memory"
	"github.com/dmitrijs2005/drivesync/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const secret = "test-secret"

type staticToken string

func (s staticToken) Token() string { return string(s) }

type env struct {
	store  *memory.Store
	client *Client
}

func tokenFor(t *testing.T, owner string) staticToken {
	t.Helper()
	tok, err := auth.GenerateToken(owner, []byte(secret), time.Hour)
	require.NoError(t, err)
	return staticToken(tok)
}

func newEnv(t *testing.T, tokens TokenSource) *env {
	t.Helper()
	store := memory.New()
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	srv := rpc.NewServer("bufnet", store, logging.Nop{}, secret)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()

	client, err := Dial("passthrough:///bufnet", tokens, logging.Nop{},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		cancel()
		<-done
	})
	return &env{store: store, client: client}
}

func next(t *testing.T, sub recordstore.Subscription) recordstore.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
		return recordstore.Snapshot{}
	}
}

func TestClient_Ping(t *testing.T) {
	e := newEnv(t, staticToken(""))
	require.NoError(t, e.client.Ping(context.Background()))
}

func TestClient_NoTokenFailsBeforeCall(t *testing.T) {
	e := newEnv(t, staticToken(""))
	ctx := context.Background()

	_, err := e.client.Insert(ctx, "files", recordstore.Document{"name": "a"})
	assert.ErrorIs(t, err, common.ErrAuthRequired)

	_, err = e.client.LiveQuery(ctx, recordstore.Query{Collection: "files"})
	assert.ErrorIs(t, err, common.ErrAuthRequired)

	assert.Zero(t, e.store.Len("files"))
}

func TestClient_BadTokenIsInvalid(t *testing.T) {
	e := newEnv(t, staticToken("garbage"))
	_, err := e.client.Get(context.Background(), "files", "x")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestClient_CRUD(t *testing.T) {
	e := newEnv(t, tokenFor(t, "u1"))
	ctx := context.Background()

	id, err := e.client.Insert(ctx, "files", recordstore.Document{"name": "a", "sizeBytes": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := e.client.Get(ctx, "files", id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "u1", rec.Fields["ownerId"])
	assert.Equal(t, float64(3), rec.Fields["sizeBytes"])
	assert.NotEmpty(t, rec.Fields["createdAt"])

	require.NoError(t, e.client.UpdateFields(ctx, "files", id, recordstore.Document{"name": "b"}))
	rec, err = e.client.Get(ctx, "files", id)
	require.NoError(t, err)
	assert.Equal(t, "b", rec.Fields["name"])

	require.NoError(t, e.client.Delete(ctx, "files", id))
	_, err = e.client.Get(ctx, "files", id)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	err = e.client.UpdateFields(ctx, "files", id, recordstore.Document{"name": "c"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestClient_LiveQueryPushesFullSets(t *testing.T) {
	e := newEnv(t, tokenFor(t, "u1"))
	ctx := context.Background()

	sub, err := e.client.LiveQuery(ctx, recordstore.Query{
		Collection: "files",
		Filters:    []recordstore.Filter{{Field: "ownerId", Value: "u1"}},
		Sort:       []recordstore.SortKey{{Field: "name"}},
	})
	require.NoError(t, err)
	defer sub.Close()

	snap := next(t, sub)
	require.NoError(t, snap.Err)
	assert.Empty(t, snap.Records)

	_, err = e.client.Insert(ctx, "files", recordstore.Document{"name": "b"})
	require.NoError(t, err)
	_, err = e.client.Insert(ctx, "files", recordstore.Document{"name": "a"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case snap = <-sub.Events():
		default:
		}
		return len(snap.Records) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "a", snap.Records[0].Fields["name"])
	assert.Equal(t, "b", snap.Records[1].Fields["name"])
}

func TestClient_LiveQueryMustBeScoped(t *testing.T) {
	e := newEnv(t, tokenFor(t, "u1"))

	sub, err := e.client.LiveQuery(context.Background(), recordstore.Query{
		Collection: "files",
		Filters:    []recordstore.Filter{{Field: "ownerId", Value: "u2"}},
	})
	require.NoError(t, err)

	snap := next(t, sub)
	var se *common.SubscriptionError
	require.True(t, errors.As(snap.Err, &se))
	assert.ErrorIs(t, snap.Err, common.ErrorUnauthorized)
	assert.ErrorIs(t, snap.Err, common.ErrSubscriptionLost)
}

func TestClient_RevokedSubscriptionIsLost(t *testing.T) {
	e := newEnv(t, tokenFor(t, "u1"))

	sub, err := e.client.LiveQuery(context.Background(), recordstore.Query{
		Collection: "notes",
		Filters:    []recordstore.Filter{{Field: "ownerId", Value: "u1"}},
	})
	require.NoError(t, err)
	next(t, sub)

	e.store.Revoke("u1", errors.New("permission revoked"))

	var snap recordstore.Snapshot
	require.Eventually(t, func() bool {
		select {
		case s, ok := <-sub.Events():
			if ok {
				snap = s
			}
		default:
		}
		return snap.Err != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, snap.Err, common.ErrSubscriptionLost)
}

func TestClient_CloseEndsSubscription(t *testing.T) {
	e := newEnv(t, tokenFor(t, "u1"))

	sub, err := e.client.LiveQuery(context.Background(), recordstore.Query{
		Collection: "files",
		Filters:    []recordstore.Filter{{Field: "ownerId", Value: "u1"}},
	})
	require.NoError(t, err)
	next(t, sub)

	require.NoError(t, sub.Close())
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestClient_DriveOverGRPC(t *testing.T) {
	e := newEnv(t, tokenFor(t, "u1"))
	ctx := context.Background()

	d := drive.New(e.client, blobstore.NewMemory())
	require.NoError(t, d.Init(ctx, "u1"))
	defer d.Dispose()

	folderID, err := d.CreateFolder(ctx, "Projects")
	require.NoError(t, err)
	_, err = d.CreateDocument(ctx, "readme", "hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return d.State() == livesync.Live && len(d.Files()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, d.NavigateTo(ctx, &folderID))
	assert.Equal(t, []models.Breadcrumb{models.RootBreadcrumb(), {ID: folderID, Name: "Projects"}}, d.Breadcrumbs())
	require.Eventually(t, func() bool {
		return d.State() == livesync.Live && len(d.Files()) == 0
	}, 2*time.Second, 5*time.Millisecond)
}
