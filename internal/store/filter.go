package store

import (
	"fmt"
	"strings"
)

// Filter is a small, explicit set of WHERE-clause conditions the adapter
// knows how to push down; it deliberately does not expose a raw SQL
// fragment to callers outside this package.
type Filter struct {
	Equals      map[string]any   // column = value (AND'd)
	TagContains string           // case-insensitive substring match against any element of `tags`
	ExcludeID   string           // id <> value, used by related_articles / image_nn self-exclusion
	In          map[string][]any // column IN (...)
}

// buildWhere renders f into a "WHERE ..." clause (or "" if f is empty) plus
// its positional arguments, accumulated in clause order.
func buildWhere(f *Filter) (string, []any) {
	if f == nil {
		return "", nil
	}

	var conditions []string
	var args []any

	for col, val := range f.Equals {
		conditions = append(conditions, fmt.Sprintf("%s = ?", col))
		args = append(args, val)
	}

	if f.TagContains != "" {
		// A correlated unnest subquery rather than a list_filter lambda:
		// bound parameters are not usable inside lambda bodies.
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM (SELECT unnest(tags) AS tag) AS t WHERE contains(lower(t.tag), lower(?)))")
		args = append(args, f.TagContains)
	}

	if f.ExcludeID != "" {
		conditions = append(conditions, "id <> ?")
		args = append(args, f.ExcludeID)
	}

	for col, vals := range f.In {
		placeholders := make([]string, len(vals))
		for i, v := range vals {
			placeholders[i] = "?"
			args = append(args, v)
		}
		conditions = append(conditions, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ",")))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
