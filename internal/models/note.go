// Package models defines the domain types for notegraph.
package models

import "time"

// Note is a short text document addressed by id and by unique title.
type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted,omitempty"`
}

// Link is a directed edge from one note to another.
type Link struct {
	ID           int64     `json:"id"`
	SourceNoteID int64     `json:"source_note_id"`
	TargetNoteID int64     `json:"target_note_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// SearchHit is one ranked search result. Score follows the BM25 convention
// used by SQLite FTS5: lower is a better match.
type SearchHit struct {
	Note               Note    `json:"note"`
	HighlightedTitle   string  `json:"highlighted_title"`
	HighlightedSnippet string  `json:"highlighted_snippet"`
	Score              float64 `json:"score"`
}
