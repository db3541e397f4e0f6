package models

import "time"

// ChecklistItem is owned by exactly one NoteRecord.
type ChecklistItem struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	IsCompleted bool   `json:"isCompleted"`
}

// NoteRecord is a freeform note. ChecklistItems keep insertion order and
// ids are unique within a note.
type NoteRecord struct {
	ID             string          `json:"-"`
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	OwnerID        string          `json:"ownerId"`
	Color          string          `json:"color,omitempty"`
	Labels         []string        `json:"labels,omitempty"`
	IsPinned       bool            `json:"isPinned"`
	ChecklistItems []ChecklistItem `json:"checklistItems"`
	AISummary      string          `json:"aiSummary,omitempty"`
	AISuggestions  []string        `json:"aiSuggestions,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// CloneChecklist returns a copy that can be mutated without touching the
// snapshot the note came from.
func (n NoteRecord) CloneChecklist() []ChecklistItem {
	out := make([]ChecklistItem, len(n.ChecklistItems))
	copy(out, n.ChecklistItems)
	return out
}
