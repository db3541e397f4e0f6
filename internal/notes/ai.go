package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/models"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
)

// Summary is what an Assistant derives from a note.
type Summary struct {
	Text        string
	Suggestions []string
}

// Assistant generates note summaries. Generation itself lives outside
// drivesync.
type Assistant interface {
	Summarize(ctx context.Context, note models.NoteRecord) (Summary, error)
}

// Passthrough "summarizes" a note as its trimmed content and never
// suggests anything.
type Passthrough struct{}

func (Passthrough) Summarize(_ context.Context, note models.NoteRecord) (Summary, error) {
	return Summary{Text: strings.TrimSpace(note.Content), Suggestions: []string{}}, nil
}

// Summarize runs the assistant on the loaded note and stores the result.
func (n *Notes) Summarize(ctx context.Context, id string) (Summary, error) {
	if _, err := n.requireOwner(); err != nil {
		return Summary{}, err
	}
	note, ok := n.notes.Find(id)
	if !ok {
		return Summary{}, fmt.Errorf("summarize %s: %w", id, common.ErrorNotFound)
	}

	s, err := n.assistant.Summarize(ctx, note)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize %s: %w", id, err)
	}
	if s.Suggestions == nil {
		s.Suggestions = []string{}
	}

	err = n.notes.Update(ctx, id, recordstore.Document{
		"aiSummary":     s.Text,
		"aiSuggestions": s.Suggestions,
	})
	if err != nil {
		return Summary{}, err
	}
	return s, nil
}
