package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"github.com/dmitrijs2005/drivesync/internal/recordstore/memory"
	"github.com/dmitrijs2005/drivesync/internal/recordstore/notify"
	"github.com/dmitrijs2005/drivesync/internal/server/config"
	"github.com/dmitrijs2005/drivesync/internal/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.Store = config.StoreMemory
	c.Notifier = config.NotifierLocal
	return c
}

func TestNewApp_MemoryLocal(t *testing.T) {
	app, err := newApp(context.Background(), memoryConfig(), logging.Nop{})
	require.NoError(t, err)
	_, ok := app.store.(*memory.Store)
	assert.True(t, ok)
	require.NoError(t, app.Close())
}

func TestNewApp_UnknownBackends(t *testing.T) {
	c := memoryConfig()
	c.Store = "cassandra"
	_, err := newApp(context.Background(), c, logging.Nop{})
	assert.ErrorContains(t, err, "unknown store")

	c = memoryConfig()
	c.Notifier = "kafka"
	_, err = newApp(context.Background(), c, logging.Nop{})
	assert.ErrorContains(t, err, "unknown notifier")
}

func TestNewApp_PostgresUsesNotifierAndClosesInOrder(t *testing.T) {
	origRedis, origPG := newRedisNotifier, openPostgres
	t.Cleanup(func() { newRedisNotifier, openPostgres = origRedis, origPG })

	var order []string
	local := notify.NewLocal()
	newRedisNotifier = func(context.Context, *config.Config, logging.Logger) (notify.Notifier, error) {
		order = append(order, "redis")
		return local, nil
	}
	openPostgres = func(_ context.Context, _ *config.Config, n notify.Notifier, _ logging.Logger) (recordstore.Store, func() error, error) {
		assert.Same(t, local, n)
		order = append(order, "postgres")
		return memory.New(), func() error { order = append(order, "db closed"); return nil }, nil
	}

	c := memoryConfig()
	c.Store = config.StorePostgres
	c.Notifier = config.NotifierRedis

	app, err := newApp(context.Background(), c, logging.Nop{})
	require.NoError(t, err)
	require.NoError(t, app.Close())
	assert.Equal(t, []string{"redis", "postgres", "db closed"}, order)
}

func TestNewApp_DBFailureClosesNotifier(t *testing.T) {
	origPG, origTracer := openPostgres, initTracer
	t.Cleanup(func() { openPostgres, initTracer = origPG, origTracer })

	shutdownCalled := false
	initTracer = func(context.Context, string, string, string) (tracing.ShutdownFunc, error) {
		return func(context.Context) error { shutdownCalled = true; return nil }, nil
	}
	openPostgres = func(context.Context, *config.Config, notify.Notifier, logging.Logger) (recordstore.Store, func() error, error) {
		return nil, nil, errors.New("connection refused")
	}

	c := memoryConfig()
	c.Store = config.StorePostgres

	_, err := newApp(context.Background(), c, logging.Nop{})
	assert.ErrorContains(t, err, "db init error")
	assert.True(t, shutdownCalled)
}

func TestHealthRouter(t *testing.T) {
	h := newHealthRouter()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
