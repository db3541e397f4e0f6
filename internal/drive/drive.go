// Package drive is the files instance of the sync engine: an owner's folder
// tree scoped to the current folder, with folder navigation, blob-backed
// uploads and the star/share toggles.
package drive

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/drivesync/internal/blobstore"
	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/livesync"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/models"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("drivesync-drive")

// listingSort orders a folder listing by kind, then name.
var listingSort = []recordstore.SortKey{{Field: "kind"}, {Field: "name"}}

type Option func(*Drive)

func WithLogger(l logging.Logger) Option {
	return func(d *Drive) { d.log = logging.OrNop(l) }
}

// WithClock overrides the clock used to qualify blob paths.
func WithClock(now func() time.Time) Option {
	return func(d *Drive) { d.now = now }
}

type Drive struct {
	store recordstore.Store
	blobs blobstore.Store
	files *livesync.Engine[models.FileRecord]
	log   logging.Logger
	now   func() time.Time

	mu      sync.RWMutex
	owner   string
	current *string
	trail   []models.Breadcrumb
	// parents maps entered folders to their parent; nil is the root.
	parents map[string]*string
}

func New(store recordstore.Store, blobs blobstore.Store, opts ...Option) *Drive {
	d := &Drive{
		store:   store,
		blobs:   blobs,
		log:     logging.Nop{},
		now:     time.Now,
		trail:   []models.Breadcrumb{models.RootBreadcrumb()},
		parents: map[string]*string{},
	}
	for _, o := range opts {
		o(d)
	}
	d.log = d.log.With("module", "drive")
	d.files = livesync.New[models.FileRecord](store, common.FilesCollection, models.DecodeFile,
		livesync.WithLogger[models.FileRecord](d.log))
	return d
}

// Init scopes the drive to owner and opens the root listing.
func (d *Drive) Init(ctx context.Context, owner string) error {
	if owner == "" {
		return common.ErrAuthRequired
	}
	d.mu.Lock()
	d.owner = owner
	d.current = nil
	d.trail = []models.Breadcrumb{models.RootBreadcrumb()}
	d.parents = map[string]*string{}
	d.mu.Unlock()

	if err := d.files.Subscribe(ctx, listingFilters(owner, nil), listingSort); err != nil {
		return err
	}
	d.log.Info(ctx, "drive initialised", "owner", owner)
	return nil
}

// Dispose tears the subscription down and forgets the owner.
func (d *Drive) Dispose() {
	d.files.Close()

	d.mu.Lock()
	d.owner = ""
	d.current = nil
	d.trail = []models.Breadcrumb{models.RootBreadcrumb()}
	d.parents = map[string]*string{}
	d.mu.Unlock()
}

func listingFilters(owner string, parentID *string) []recordstore.Filter {
	var parent any
	if parentID != nil {
		parent = *parentID
	}
	return []recordstore.Filter{
		{Field: recordstore.FieldOwnerID, Value: owner},
		{Field: recordstore.FieldParentID, Value: parent},
	}
}

func (d *Drive) requireOwner() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.owner == "" {
		return "", common.ErrAuthRequired
	}
	return d.owner, nil
}

func (d *Drive) Owner() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.owner
}

// Files returns the current folder's listing.
func (d *Drive) Files() []models.FileRecord { return d.files.Items() }

func (d *Drive) Find(id string) (models.FileRecord, bool) { return d.files.Find(id) }

func (d *Drive) State() livesync.State { return d.files.State() }

// Err reports why the listing went stale, if it did.
func (d *Drive) Err() error { return d.files.Err() }

func (d *Drive) Changes() <-chan struct{} { return d.files.Changes() }

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name must not be empty", common.ErrorValidation)
	}
	return name, nil
}

func (d *Drive) insert(ctx context.Context, rec models.FileRecord) (string, error) {
	doc, err := models.ToDocument(rec)
	if err != nil {
		return "", err
	}
	return d.files.Insert(ctx, doc)
}

// CreateFolder adds a folder under the current folder.
func (d *Drive) CreateFolder(ctx context.Context, name string) (string, error) {
	owner, err := d.requireOwner()
	if err != nil {
		return "", err
	}
	name, err = cleanName(name)
	if err != nil {
		return "", err
	}
	return d.insert(ctx, models.FileRecord{
		Name:     name,
		Kind:     models.KindFolder,
		OwnerID:  owner,
		ParentID: d.CurrentFolder(),
	})
}

// CreateDocument adds an inline text document under the current folder.
func (d *Drive) CreateDocument(ctx context.Context, name, content string) (string, error) {
	owner, err := d.requireOwner()
	if err != nil {
		return "", err
	}
	name, err = cleanName(name)
	if err != nil {
		return "", err
	}
	return d.insert(ctx, models.FileRecord{
		Name:      name,
		Kind:      models.KindDocument,
		Content:   content,
		OwnerID:   owner,
		ParentID:  d.CurrentFolder(),
		SizeBytes: int64(len(content)),
	})
}

func (d *Drive) Rename(ctx context.Context, id, name string) error {
	if _, err := d.requireOwner(); err != nil {
		return err
	}
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	return d.files.Update(ctx, id, recordstore.Document{"name": name})
}

// UpdateContent replaces a document's inline text.
func (d *Drive) UpdateContent(ctx context.Context, id, content string) error {
	if _, err := d.requireOwner(); err != nil {
		return err
	}
	return d.files.Update(ctx, id, recordstore.Document{
		"content":   content,
		"sizeBytes": len(content),
	})
}

// ToggleStar writes the negation of the star flag as currently loaded.
func (d *Drive) ToggleStar(ctx context.Context, id string) error {
	if _, err := d.requireOwner(); err != nil {
		return err
	}
	f, ok := d.files.Find(id)
	if !ok {
		return fmt.Errorf("toggle star %s: %w", id, common.ErrorNotFound)
	}
	return d.files.Update(ctx, id, recordstore.Document{"isStarred": !f.IsStarred})
}

// ShareFile marks a file shared and appends recipient to sharedWith.
// Sharing twice with the same recipient records it twice.
func (d *Drive) ShareFile(ctx context.Context, id, recipient string) error {
	if _, err := d.requireOwner(); err != nil {
		return err
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("%w: recipient must not be empty", common.ErrorValidation)
	}
	f, ok := d.files.Find(id)
	if !ok {
		return fmt.Errorf("share %s: %w", id, common.ErrorNotFound)
	}
	shared := append(append([]string{}, f.SharedWith...), recipient)
	return d.files.Update(ctx, id, recordstore.Document{
		"isShared":   true,
		"sharedWith": shared,
	})
}
