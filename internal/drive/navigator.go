package drive

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/models"
)

// CurrentFolder returns the current folder id; nil is the root.
func (d *Drive) CurrentFolder() *string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.current == nil {
		return nil
	}
	id := *d.current
	return &id
}

// Breadcrumbs returns the trail from the root to the current folder.
func (d *Drive) Breadcrumbs() []models.Breadcrumb {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.Breadcrumb(nil), d.trail...)
}

// NavigateTo makes folderID (nil for the root) the current folder and
// re-scopes the listing to its children.
func (d *Drive) NavigateTo(ctx context.Context, folderID *string) error {
	owner, err := d.requireOwner()
	if err != nil {
		return err
	}
	if folderID != nil && *folderID == models.RootBreadcrumb().ID {
		folderID = nil
	}

	// Resolve against the listing we are leaving; it is replaced below.
	loaded := d.files.Items()
	trail := resolveTrail(d.Breadcrumbs(), loaded, folderID)
	if folderID != nil {
		for _, f := range loaded {
			if f.ID == *folderID {
				d.rememberParent(f.ID, f.ParentID)
				break
			}
		}
	}

	if err := d.files.Subscribe(ctx, listingFilters(owner, folderID), listingSort); err != nil {
		return err
	}

	d.mu.Lock()
	if folderID == nil {
		d.current = nil
	} else {
		id := *folderID
		d.current = &id
	}
	d.trail = trail
	d.mu.Unlock()

	d.log.Debug(ctx, "navigated", "folder", folderID, "depth", len(trail))
	return nil
}

func (d *Drive) rememberParent(id string, parentID *string) {
	var p *string
	if parentID != nil {
		v := *parentID
		p = &v
	}
	d.mu.Lock()
	d.parents[id] = p
	d.mu.Unlock()
}

// ParentFolder returns the parent of the current folder; nil is the root,
// and the root is its own parent. The parent is known from the listing the
// folder was entered from; otherwise the folder record is read.
func (d *Drive) ParentFolder(ctx context.Context) (*string, error) {
	if _, err := d.requireOwner(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	cur := d.current
	var (
		parent *string
		known  bool
	)
	if cur != nil {
		parent, known = d.parents[*cur]
	}
	d.mu.RUnlock()

	switch {
	case cur == nil:
		return nil, nil
	case known:
		if parent == nil {
			return nil, nil
		}
		p := *parent
		return &p, nil
	}

	id := *cur
	rec, err := d.store.Get(ctx, common.FilesCollection, id)
	if err != nil {
		return nil, fmt.Errorf("parent of %s: %w", id, err)
	}
	f, err := models.DecodeFile(rec)
	if err != nil {
		return nil, err
	}
	d.rememberParent(id, f.ParentID)
	return f.ParentID, nil
}

// resolveTrail computes the breadcrumb trail for target.
//
// A folder already on the trail (going back up) truncates the trail there.
// Otherwise the folder and at most one ancestor are resolved from loaded,
// the listing of the folder being left: [root, parent?, target]. Deeper
// ancestors are not walked, and an unresolvable target gets an empty name.
func resolveTrail(trail []models.Breadcrumb, loaded []models.FileRecord, target *string) []models.Breadcrumb {
	root := models.RootBreadcrumb()
	if target == nil {
		return []models.Breadcrumb{root}
	}

	for i, b := range trail {
		if i > 0 && b.ID == *target {
			return append([]models.Breadcrumb(nil), trail[:i+1]...)
		}
	}

	byID := make(map[string]models.FileRecord, len(loaded))
	for _, f := range loaded {
		byID[f.ID] = f
	}

	out := []models.Breadcrumb{root}
	folder, ok := byID[*target]
	if ok && folder.ParentID != nil {
		if parent, ok := byID[*folder.ParentID]; ok {
			out = append(out, models.Breadcrumb{ID: parent.ID, Name: parent.Name})
		}
	}
	return append(out, models.Breadcrumb{ID: *target, Name: folder.Name})
}
