// Package server wires the record store server: storage backend, change
// feed, tracing, the gRPC RecordStore service and the health endpoint. It
// handles graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/drivesync/internal/buildinfo"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"github.com/dmitrijs2005/drivesync/internal/recordstore/memory"
	"github.com/dmitrijs2005/drivesync/internal/recordstore/notify"
	"github.com/dmitrijs2005/drivesync/internal/recordstore/postgres"
	"github.com/dmitrijs2005/drivesync/internal/rpc"
	"github.com/dmitrijs2005/drivesync/internal/server/config"
	"github.com/dmitrijs2005/drivesync/internal/tracing"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   recordstore.Store
	closers []func() error
}

// Seams for tests.
var (
	newRedisNotifier = func(ctx context.Context, c *config.Config, l logging.Logger) (notify.Notifier, error) {
		return notify.NewRedis(ctx, &redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}, l)
	}
	openPostgres = func(ctx context.Context, c *config.Config, n notify.Notifier, l logging.Logger) (recordstore.Store, func() error, error) {
		db, err := postgres.Open(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return postgres.New(db, n, l), db.Close, nil
	}
	initTracer = tracing.InitTracer
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	shutdown, err := initTracer(ctx, "drivesync-server", buildinfo.ModuleVersion(), c.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}
	app.closers = append(app.closers, func() error { return shutdown(context.Background()) })

	var notifier notify.Notifier
	switch c.Notifier {
	case config.NotifierRedis:
		notifier, err = newRedisNotifier(ctx, c, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
	case config.NotifierLocal:
		notifier = notify.NewLocal()
	default:
		app.Close()
		return nil, fmt.Errorf("unknown notifier %q", c.Notifier)
	}
	app.closers = append(app.closers, notifier.Close)

	switch c.Store {
	case config.StorePostgres:
		store, closeDB, err := openPostgres(ctx, c, notifier, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.store = store
		app.closers = append(app.closers, closeDB)
	case config.StoreMemory:
		app.store = memory.New(memory.WithLogger(logger))
	default:
		app.Close()
		return nil, fmt.Errorf("unknown store %q", c.Store)
	}

	return app, nil
}

// Close releases backends in reverse order of acquisition.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rpc.NewServer(app.config.EndpointAddrGRPC, app.store, app.logger, app.config.SecretKey)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := runHealthServer(ctx, app.config.EndpointAddrHTTP, app.logger); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.Store, "notifier", app.config.Notifier)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(context.Background(), "shutdown error", "error", err)
	}
	app.logger.Info(context.Background(), "Stopped")
}
