// Package notes is the notes instance of the sync engine: an owner's notes,
// pinned first and most recently updated next, with an embedded checklist.
package notes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/livesync"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/models"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"github.com/google/uuid"
)

var notesSort = []recordstore.SortKey{{Field: recordstore.FieldUpdatedAt, Desc: true}}

// pinnedFirst is applied on the client: the pin flag is not part of the
// server sort.
func pinnedFirst(a, b models.NoteRecord) int {
	switch {
	case a.IsPinned && !b.IsPinned:
		return -1
	case !a.IsPinned && b.IsPinned:
		return 1
	}
	return b.UpdatedAt.Compare(a.UpdatedAt)
}

type Option func(*Notes)

func WithLogger(l logging.Logger) Option {
	return func(n *Notes) { n.log = logging.OrNop(l) }
}

func WithAssistant(a Assistant) Option {
	return func(n *Notes) { n.assistant = a }
}

// WithItemIDs overrides checklist item id generation.
func WithItemIDs(newID func() string) Option {
	return func(n *Notes) { n.newID = newID }
}

type Notes struct {
	notes     *livesync.Engine[models.NoteRecord]
	assistant Assistant
	log       logging.Logger
	newID     func() string

	mu    sync.RWMutex
	owner string
}

func New(store recordstore.Store, opts ...Option) *Notes {
	n := &Notes{
		assistant: Passthrough{},
		log:       logging.Nop{},
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(n)
	}
	n.log = n.log.With("module", "notes")
	n.notes = livesync.New[models.NoteRecord](store, common.NotesCollection, models.DecodeNote,
		livesync.WithOrder[models.NoteRecord](pinnedFirst),
		livesync.WithLogger[models.NoteRecord](n.log))
	return n
}

func (n *Notes) Init(ctx context.Context, owner string) error {
	if owner == "" {
		return common.ErrAuthRequired
	}
	n.mu.Lock()
	n.owner = owner
	n.mu.Unlock()

	filters := []recordstore.Filter{{Field: recordstore.FieldOwnerID, Value: owner}}
	if err := n.notes.Subscribe(ctx, filters, notesSort); err != nil {
		return err
	}
	n.log.Info(ctx, "notes initialised", "owner", owner)
	return nil
}

func (n *Notes) Dispose() {
	n.notes.Close()
	n.mu.Lock()
	n.owner = ""
	n.mu.Unlock()
}

func (n *Notes) requireOwner() (string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.owner == "" {
		return "", common.ErrAuthRequired
	}
	return n.owner, nil
}

// Notes returns the loaded notes, pinned first.
func (n *Notes) Notes() []models.NoteRecord { return n.notes.Items() }

func (n *Notes) Find(id string) (models.NoteRecord, bool) { return n.notes.Find(id) }

func (n *Notes) State() livesync.State { return n.notes.State() }

func (n *Notes) Err() error { return n.notes.Err() }

func (n *Notes) Changes() <-chan struct{} { return n.notes.Changes() }

// NoteDraft is the content of a new note. Checklist holds item texts;
// blank ones are dropped.
type NoteDraft struct {
	Title     string
	Content   string
	Color     string
	Labels    []string
	IsPinned  bool
	Checklist []string
}

func (n *Notes) Create(ctx context.Context, d NoteDraft) (string, error) {
	owner, err := n.requireOwner()
	if err != nil {
		return "", err
	}

	items := []models.ChecklistItem{}
	for _, text := range d.Checklist {
		if text = strings.TrimSpace(text); text != "" {
			items = append(items, models.ChecklistItem{ID: n.newID(), Text: text})
		}
	}
	title := strings.TrimSpace(d.Title)
	if title == "" && strings.TrimSpace(d.Content) == "" && len(items) == 0 {
		return "", fmt.Errorf("%w: note is empty", common.ErrorValidation)
	}

	doc, err := models.ToDocument(models.NoteRecord{
		Title:          title,
		Content:        d.Content,
		OwnerID:        owner,
		Color:          d.Color,
		Labels:         d.Labels,
		IsPinned:       d.IsPinned,
		ChecklistItems: items,
	})
	if err != nil {
		return "", err
	}
	return n.notes.Insert(ctx, doc)
}

// NoteUpdate names the fields to change; nil fields are left alone.
type NoteUpdate struct {
	Title   *string
	Content *string
	Color   *string
	Labels  *[]string
}

func (u NoteUpdate) document() recordstore.Document {
	doc := recordstore.Document{}
	if u.Title != nil {
		doc["title"] = strings.TrimSpace(*u.Title)
	}
	if u.Content != nil {
		doc["content"] = *u.Content
	}
	if u.Color != nil {
		doc["color"] = *u.Color
	}
	if u.Labels != nil {
		doc["labels"] = *u.Labels
	}
	return doc
}

// Update writes the given fields. An empty update writes nothing.
func (n *Notes) Update(ctx context.Context, id string, u NoteUpdate) error {
	if _, err := n.requireOwner(); err != nil {
		return err
	}
	doc := u.document()
	if len(doc) == 0 {
		return nil
	}
	return n.notes.Update(ctx, id, doc)
}

func (n *Notes) Delete(ctx context.Context, id string) error {
	if _, err := n.requireOwner(); err != nil {
		return err
	}
	return n.notes.Delete(ctx, id)
}

// TogglePin writes the negation of the pin flag as currently loaded.
func (n *Notes) TogglePin(ctx context.Context, id string) error {
	if _, err := n.requireOwner(); err != nil {
		return err
	}
	note, ok := n.notes.Find(id)
	if !ok {
		return fmt.Errorf("toggle pin %s: %w", id, common.ErrorNotFound)
	}
	return n.notes.Update(ctx, id, recordstore.Document{"isPinned": !note.IsPinned})
}
