package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/models"
	"github.com/dmitrijs2005/drivesync/internal/notes"
)

var (
	getSimpleText = GetSimpleText
	getLines      = GetLines
)

func (a *App) resolveNote(ref string) (models.NoteRecord, error) {
	n := a.workspace.Notes()
	if note, ok := n.Find(ref); ok {
		return note, nil
	}
	var found []models.NoteRecord
	for _, note := range n.Notes() {
		if note.Title == ref {
			found = append(found, note)
		}
	}
	switch len(found) {
	case 0:
		return models.NoteRecord{}, fmt.Errorf("note %q: %w", ref, common.ErrorNotFound)
	case 1:
		return found[0], nil
	default:
		return models.NoteRecord{}, fmt.Errorf("%w: %d notes are titled %q, use the id", common.ErrorValidation, len(found), ref)
	}
}

// resolveItem accepts a 1-based position or an item id.
func resolveItem(note models.NoteRecord, ref string) (string, error) {
	if i, err := strconv.Atoi(ref); err == nil {
		if i < 1 || i > len(note.ChecklistItems) {
			return "", fmt.Errorf("%w: item %d out of range", common.ErrorValidation, i)
		}
		return note.ChecklistItems[i-1].ID, nil
	}
	for _, it := range note.ChecklistItems {
		if it.ID == ref {
			return it.ID, nil
		}
	}
	return "", fmt.Errorf("item %q: %w", ref, common.ErrorNotFound)
}

func (a *App) ListNotes(_ context.Context, _ []string) error {
	list := a.workspace.Notes().Notes()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "(no notes)")
		return nil
	}
	for _, n := range list {
		pin := " "
		if n.IsPinned {
			pin = "^"
		}
		done := 0
		for _, it := range n.ChecklistItems {
			if it.IsCompleted {
				done++
			}
		}
		line := fmt.Sprintf("%s %s  %s", pin, n.ID, n.Title)
		if len(n.ChecklistItems) > 0 {
			line += fmt.Sprintf(" [%d/%d]", done, len(n.ChecklistItems))
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

// AddNote prompts for a title, content and checklist items.
func (a *App) AddNote(ctx context.Context, _ []string) error {
	title, err := getSimpleText(a.reader, "Enter title", a.out)
	if err != nil {
		return err
	}
	content, err := getMultiline(a.reader, "Enter content", a.out)
	if err != nil {
		return err
	}
	items, err := getLines(a.reader, "Enter checklist items, one per line", a.out)
	if err != nil {
		return err
	}

	id, err := a.workspace.Notes().Create(ctx, notes.NoteDraft{
		Title:     title,
		Content:   content,
		Checklist: items,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Created note", id)
	return nil
}

func (a *App) ShowNote(_ context.Context, args []string) error {
	n, err := a.resolveNote(strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, n.Title)
	if n.Content != "" {
		fmt.Fprintln(a.out, n.Content)
	}
	for i, it := range n.ChecklistItems {
		mark := " "
		if it.IsCompleted {
			mark = "x"
		}
		fmt.Fprintf(a.out, "%d. [%s] %s\n", i+1, mark, it.Text)
	}
	if n.AISummary != "" {
		fmt.Fprintln(a.out, "Summary:", n.AISummary)
	}
	return nil
}

func (a *App) Pin(ctx context.Context, args []string) error {
	n, err := a.resolveNote(strings.Join(args, " "))
	if err != nil {
		return err
	}
	return a.workspace.Notes().TogglePin(ctx, n.ID)
}

func (a *App) RemoveNote(ctx context.Context, args []string) error {
	n, err := a.resolveNote(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if err := a.workspace.Notes().Delete(ctx, n.ID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted note", n.ID)
	return nil
}

func (a *App) AddItem(ctx context.Context, args []string) error {
	n, err := a.resolveNote(args[0])
	if err != nil {
		return err
	}
	_, err = a.workspace.Notes().AddItem(ctx, n.ID, strings.Join(args[1:], " "))
	return err
}

func (a *App) TickItem(ctx context.Context, args []string) error {
	n, err := a.resolveNote(args[0])
	if err != nil {
		return err
	}
	itemID, err := resolveItem(n, args[1])
	if err != nil {
		return err
	}
	return a.workspace.Notes().ToggleItem(ctx, n.ID, itemID)
}

func (a *App) RemoveItem(ctx context.Context, args []string) error {
	n, err := a.resolveNote(args[0])
	if err != nil {
		return err
	}
	itemID, err := resolveItem(n, args[1])
	if err != nil {
		return err
	}
	return a.workspace.Notes().RemoveItem(ctx, n.ID, itemID)
}

func (a *App) Summarize(ctx context.Context, args []string) error {
	n, err := a.resolveNote(strings.Join(args, " "))
	if err != nil {
		return err
	}
	s, err := a.workspace.Notes().Summarize(ctx, n.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Summary:", s.Text)
	return nil
}
