package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/drivesync/internal/recordstore"
)

// buildSelect renders a live query as SQL. Field names and values are always
// bound as parameters.
//
// Equality filters use JSONB containment so the GIN index applies; a nil
// filter matches both a JSON null and a missing key. Nulls order first
// ascending and last descending, the same as the in-memory store.
func buildSelect(q recordstore.Query) (string, []any, error) {
	var (
		sb   strings.Builder
		args = []any{q.Collection}
	)
	sb.WriteString("SELECT id, doc FROM records WHERE collection = $1")

	for _, f := range q.Filters {
		if f.Value == nil {
			args = append(args, f.Field)
			fmt.Fprintf(&sb, " AND COALESCE(doc->($%d::text), 'null'::jsonb) = 'null'::jsonb", len(args))
			continue
		}
		b, err := json.Marshal(map[string]any{f.Field: f.Value})
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %q: %w", f.Field, err)
		}
		args = append(args, string(b))
		fmt.Fprintf(&sb, " AND doc @> $%d::jsonb", len(args))
	}

	sb.WriteString(" ORDER BY ")
	for _, k := range q.Sort {
		args = append(args, k.Field)
		if k.Desc {
			fmt.Fprintf(&sb, "doc->($%d::text) DESC NULLS LAST, ", len(args))
		} else {
			fmt.Fprintf(&sb, "doc->($%d::text) ASC NULLS FIRST, ", len(args))
		}
	}
	sb.WriteString("id ASC")

	return sb.String(), args, nil
}
