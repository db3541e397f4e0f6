// Package workspace ties the synchronized collections to the signed-in
// identity: a new owner re-initialises everything, signing out tears it
// all down.
package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/drivesync/internal/blobstore"
	"github.com/dmitrijs2005/drivesync/internal/drive"
	"github.com/dmitrijs2005/drivesync/internal/identity"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/notes"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
)

type Option func(*Workspace)

func WithLogger(l logging.Logger) Option {
	return func(w *Workspace) { w.log = logging.OrNop(l) }
}

func WithAutosaveDelay(d time.Duration) Option {
	return func(w *Workspace) { w.autosaveDelay = d }
}

func WithDriveOptions(opts ...drive.Option) Option {
	return func(w *Workspace) { w.driveOpts = append(w.driveOpts, opts...) }
}

func WithNotesOptions(opts ...notes.Option) Option {
	return func(w *Workspace) { w.notesOpts = append(w.notesOpts, opts...) }
}

type Workspace struct {
	session       *identity.Session
	drive         *drive.Drive
	notes         *notes.Notes
	log           logging.Logger
	autosaveDelay time.Duration
	driveOpts     []drive.Option
	notesOpts     []notes.Option

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	owner    string
	autosave *drive.Autosaver
	err      error
	unwatch  func()
}

func New(session *identity.Session, store recordstore.Store, blobs blobstore.Store, opts ...Option) *Workspace {
	w := &Workspace{
		session:       session,
		log:           logging.Nop{},
		autosaveDelay: drive.DefaultAutosaveDelay,
	}
	for _, o := range opts {
		o(w)
	}
	w.log = w.log.With("module", "workspace")
	w.drive = drive.New(store, blobs, append([]drive.Option{drive.WithLogger(w.log)}, w.driveOpts...)...)
	w.notes = notes.New(store, append([]notes.Option{notes.WithLogger(w.log)}, w.notesOpts...)...)
	return w
}

// Start follows the session until ctx is cancelled or Close is called. The
// current identity, if any, is applied before Start returns.
func (w *Workspace) Start(ctx context.Context) {
	w.mu.Lock()
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	unwatch := w.session.Watch(w.apply)
	w.mu.Lock()
	w.unwatch = unwatch
	w.mu.Unlock()

	owner, _ := w.session.Current()
	w.apply(owner)

	context.AfterFunc(w.ctx, w.Close)
}

func (w *Workspace) apply(owner string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if owner == w.owner {
		return
	}
	w.teardownLocked()
	if owner == "" || w.ctx == nil || w.ctx.Err() != nil {
		return
	}

	ctx := w.ctx
	w.owner = owner
	w.err = errors.Join(w.drive.Init(ctx, owner), w.notes.Init(ctx, owner))
	if w.err != nil {
		w.log.Error(ctx, "workspace init failed", "owner", owner, "error", w.err)
	}
	w.autosave = w.drive.NewAutosaver(w.autosaveDelay)
	w.log.Info(ctx, "workspace ready", "owner", owner)
}

// teardownLocked drops every synchronized item and pending edit. w.mu is
// held.
func (w *Workspace) teardownLocked() {
	if w.autosave != nil {
		w.autosave.Stop()
		w.autosave = nil
	}
	w.drive.Dispose()
	w.notes.Dispose()
	w.owner = ""
	w.err = nil
}

// Close stops following the session and disposes everything.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unwatch != nil {
		w.unwatch()
		w.unwatch = nil
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.teardownLocked()
}

func (w *Workspace) Drive() *drive.Drive { return w.drive }

func (w *Workspace) Notes() *notes.Notes { return w.notes }

// Autosaver is nil while signed out.
func (w *Workspace) Autosaver() *drive.Autosaver {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.autosave
}

func (w *Workspace) Owner() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.owner
}

// Err is the error of the last initialisation, if any.
func (w *Workspace) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}
