package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/models"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
)

// Checklist mutations read the latest loaded snapshot of the note, change
// the item list and write the whole list back. Two mutations issued before
// the first one's echo arrives overwrite each other.

func (n *Notes) loadedNote(id string) (models.NoteRecord, error) {
	note, ok := n.notes.Find(id)
	if !ok {
		return models.NoteRecord{}, fmt.Errorf("note %s: %w", id, common.ErrorNotFound)
	}
	return note, nil
}

func (n *Notes) writeChecklist(ctx context.Context, noteID string, items []models.ChecklistItem) error {
	return n.notes.Update(ctx, noteID, recordstore.Document{"checklistItems": items})
}

// AddItem appends an open item and returns its id.
func (n *Notes) AddItem(ctx context.Context, noteID, text string) (string, error) {
	if _, err := n.requireOwner(); err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: checklist item text must not be empty", common.ErrorValidation)
	}
	note, err := n.loadedNote(noteID)
	if err != nil {
		return "", err
	}

	item := models.ChecklistItem{ID: n.newID(), Text: text}
	items := append(note.CloneChecklist(), item)
	if err := n.writeChecklist(ctx, noteID, items); err != nil {
		return "", err
	}
	return item.ID, nil
}

// ToggleItem flips an item's completion.
func (n *Notes) ToggleItem(ctx context.Context, noteID, itemID string) error {
	if _, err := n.requireOwner(); err != nil {
		return err
	}
	note, err := n.loadedNote(noteID)
	if err != nil {
		return err
	}

	items := note.CloneChecklist()
	for i := range items {
		if items[i].ID == itemID {
			items[i].IsCompleted = !items[i].IsCompleted
			return n.writeChecklist(ctx, noteID, items)
		}
	}
	return fmt.Errorf("checklist item %s: %w", itemID, common.ErrorNotFound)
}

// RemoveItem drops an item; an unknown item id is ignored.
func (n *Notes) RemoveItem(ctx context.Context, noteID, itemID string) error {
	if _, err := n.requireOwner(); err != nil {
		return err
	}
	note, err := n.loadedNote(noteID)
	if err != nil {
		return err
	}

	items := note.CloneChecklist()
	kept := items[:0]
	for _, it := range items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	return n.writeChecklist(ctx, noteID, kept)
}
