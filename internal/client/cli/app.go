package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/drivesync/internal/blobstore"
	"github.com/dmitrijs2005/drivesync/internal/client/config"
	"github.com/dmitrijs2005/drivesync/internal/identity"
	"github.com/dmitrijs2005/drivesync/internal/livesync"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"github.com/dmitrijs2005/drivesync/internal/recordstore/remote"
	"github.com/dmitrijs2005/drivesync/internal/workspace"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config    *config.Config
	logger    logging.Logger
	session   *identity.Session
	workspace *workspace.Workspace
	pinger    pinger
	closers   []func() error
	reader    *bufio.Reader
	out       io.Writer

	modeMu sync.Mutex
	mode   Mode
}

// newBlobStore is a seam for tests.
var newBlobStore = func(ctx context.Context, c *config.Config, l logging.Logger) (blobstore.Store, error) {
	switch c.BlobBackend {
	case config.BlobS3:
		return blobstore.NewS3(ctx, blobstore.S3Config{
			Endpoint:  c.BlobEndpoint,
			Region:    c.BlobRegion,
			Bucket:    c.BlobBucket,
			AccessKey: c.BlobAccessKey,
			SecretKey: c.BlobSecretKey,
		})
	case config.BlobMinio:
		return blobstore.NewMinio(ctx, blobstore.MinioConfig{
			Endpoint:  c.BlobEndpoint,
			AccessKey: c.BlobAccessKey,
			SecretKey: c.BlobSecretKey,
			Bucket:    c.BlobBucket,
			UseSSL:    c.BlobUseSSL,
		}, l)
	case config.BlobMemory:
		return blobstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stderr, "text", c.LogLevel)
	session := identity.NewSession()

	apiClient, err := remote.Dial(c.ServerEndpointAddr, session, logger)
	if err != nil {
		return nil, err
	}

	blobs, err := newBlobStore(ctx, c, logger)
	if err != nil {
		_ = apiClient.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	app := newApp(c, logger, session, apiClient, blobs, apiClient, bufio.NewReader(os.Stdin), os.Stdout)
	app.closers = append(app.closers, apiClient.Close)

	if c.AccessToken != "" {
		if err := session.SignIn(c.AccessToken); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("access token: %w", err)
		}
	}
	return app, nil
}

func newApp(c *config.Config, logger logging.Logger, session *identity.Session, store recordstore.Store,
	blobs blobstore.Store, p pinger, reader *bufio.Reader, out io.Writer) *App {
	ws := workspace.New(session, store, blobs,
		workspace.WithLogger(logger),
		workspace.WithAutosaveDelay(c.AutosaveDelay),
	)
	return &App{
		config:    c,
		logger:    logger,
		session:   session,
		workspace: ws,
		pinger:    p,
		reader:    reader,
		out:       out,
	}
}

func (a *App) Close() error {
	a.workspace.Close()
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if cerr := a.closers[i](); cerr != nil && err == nil {
			err = cerr
		}
	}
	a.closers = nil
	return err
}

func (a *App) setMode(mode Mode) {
	a.modeMu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.modeMu.Unlock()
	if changed {
		a.logger.Info(context.Background(), "switched mode", "mode", mode)
	}
}

func (a *App) Mode() Mode {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	return a.mode
}

// Run starts the workspace and the REPL and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	a.workspace.Start(ctx)

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	fmt.Fprintln(a.out, "Welcome to drivesync (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)

	if saver := a.workspace.Autosaver(); saver != nil && saver.Pending() > 0 {
		a.logger.Warn(ctx, "exiting with unsaved edits", "documents", saver.Pending())
	}
}

func (a *App) isLoggedIn() bool {
	_, ok := a.session.Current()
	return ok
}

func (a *App) getStatus() string {
	s := ""
	if owner, ok := a.session.Current(); ok {
		s = owner + " "
	}
	if mode := a.Mode(); mode != "" {
		s = s + string(mode)
	}
	if a.workspace.Drive().State() == livesync.Lost || a.workspace.Notes().State() == livesync.Lost {
		s = s + " lost"
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.pinger.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
