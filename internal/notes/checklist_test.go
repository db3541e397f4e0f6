package notes

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/models"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"github.com/dmitrijs2005/drivesync/internal/recordstore/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checklistOf(t *testing.T, n *Notes, id string, cond func([]models.ChecklistItem) bool) []models.ChecklistItem {
	t.Helper()
	got := waitNotes(t, n, noteWhere(id, func(r models.NoteRecord) bool { return cond(r.ChecklistItems) }))
	for _, r := range got {
		if r.ID == id {
			return r.ChecklistItems
		}
	}
	return nil
}

func itemsLen(k int) func([]models.ChecklistItem) bool {
	return func(items []models.ChecklistItem) bool { return len(items) == k }
}

func TestAddThenRemove_RestoresLength(t *testing.T) {
	ctx := context.Background()
	n, _ := newNotes(t)

	id, err := n.Create(ctx, NoteDraft{Title: "todo", Checklist: []string{"one", "two"}})
	require.NoError(t, err)
	before := checklistOf(t, n, id, itemsLen(2))

	itemID, err := n.AddItem(ctx, id, "three")
	require.NoError(t, err)
	added := checklistOf(t, n, id, itemsLen(3))
	assert.Equal(t, models.ChecklistItem{ID: itemID, Text: "three"}, added[2], "appended at the end, open")

	require.NoError(t, n.RemoveItem(ctx, id, itemID))
	after := checklistOf(t, n, id, itemsLen(2))
	assert.Equal(t, before, after)
}

func TestToggleItemTwice(t *testing.T) {
	ctx := context.Background()
	store := newStoreWithNote(t)
	n := New(store)
	require.NoError(t, n.Init(ctx, "u1"))
	defer n.Dispose()

	checklistOf(t, n, "n1", itemsLen(1))

	require.NoError(t, n.ToggleItem(ctx, "n1", "a"))
	done := checklistOf(t, n, "n1", func(items []models.ChecklistItem) bool { return items[0].IsCompleted })
	assert.Equal(t, "x", done[0].Text)

	require.NoError(t, n.ToggleItem(ctx, "n1", "a"))
	back := checklistOf(t, n, "n1", func(items []models.ChecklistItem) bool { return !items[0].IsCompleted })
	assert.Equal(t, []models.ChecklistItem{{ID: "a", Text: "x", IsCompleted: false}}, back)
}

func TestChecklist_Errors(t *testing.T) {
	ctx := context.Background()
	store := newStoreWithNote(t)
	n := New(store)
	require.NoError(t, n.Init(ctx, "u1"))
	defer n.Dispose()
	checklistOf(t, n, "n1", itemsLen(1))

	_, err := n.AddItem(ctx, "n1", "   ")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = n.AddItem(ctx, "missing", "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.ErrorIs(t, n.ToggleItem(ctx, "n1", "zz"), common.ErrorNotFound)
	assert.ErrorIs(t, n.ToggleItem(ctx, "missing", "a"), common.ErrorNotFound)

	require.NoError(t, n.RemoveItem(ctx, "n1", "zz"), "absent item is a no-op")
	rec, err := store.Get(ctx, common.NotesCollection, "n1")
	require.NoError(t, err)
	assert.Len(t, rec.Fields["checklistItems"], 1)
}

func TestChecklist_ItemIDsUnique(t *testing.T) {
	ctx := context.Background()
	n, _ := newNotes(t)

	id, err := n.Create(ctx, NoteDraft{Title: "list"})
	require.NoError(t, err)
	checklistOf(t, n, id, itemsLen(0))

	first, err := n.AddItem(ctx, id, "a")
	require.NoError(t, err)
	checklistOf(t, n, id, itemsLen(1))
	second, err := n.AddItem(ctx, id, "b")
	require.NoError(t, err)
	items := checklistOf(t, n, id, itemsLen(2))

	assert.NotEqual(t, first, second)
	assert.Equal(t, []string{"a", "b"}, []string{items[0].Text, items[1].Text})
}

// newStoreWithNote seeds note n1 owned by u1 with checklist [{a, x, open}].
func newStoreWithNote(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New(memory.WithIDs(func() string { return "n1" }))
	_, err := s.Insert(context.Background(), common.NotesCollection, recordstore.Document{
		"title":   "seeded",
		"ownerId": "u1",
		"checklistItems": []map[string]any{
			{"id": "a", "text": "x", "isCompleted": false},
		},
	})
	require.NoError(t, err)
	return s
}
