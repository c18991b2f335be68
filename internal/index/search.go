package index

import (
	"fmt"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
)

// Field restricts a search to one indexed column.
type Field int

const (
	FieldAll Field = iota
	FieldTitle
	FieldContent
)

// String returns the FTS column name, or "" for FieldAll.
func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldContent:
		return "content"
	}
	return ""
}

// ParseField maps "", "all", "title" and "content" to a Field.
func ParseField(s string) (Field, error) {
	switch s {
	case "", "all":
		return FieldAll, nil
	case "title":
		return FieldTitle, nil
	case "content":
		return FieldContent, nil
	}
	return FieldAll, fmt.Errorf("%w: field must be one of all, title, content, got %q", apperr.ErrInvalid, s)
}

// Highlight markers and the snippet ellipsis.
const (
	MarkOpen  = "<mark>"
	MarkClose = "</mark>"
	Ellipsis  = "..."
)

// SearchOptions controls a ranked search. Query is already in FTS5 syntax.
type SearchOptions struct {
	Field         Field
	Limit         int
	SnippetTokens int
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.SnippetTokens <= 0 || o.SnippetTokens > 64 {
		o.SnippetTokens = 32
	}
	return o
}

// SearchResult is one hit with its relevance score (lower is better).
type SearchResult = models.SearchHit
