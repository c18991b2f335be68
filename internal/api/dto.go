package api

import "github.com/starford/notegraph/internal/models"

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title" example:"Project X" validate:"required"`
	Content string `json:"content" example:"Depends on [[Roadmap]]"`
}

// UpdateNoteRequest is the request body for replacing title and content.
type UpdateNoteRequest struct {
	Title   string `json:"title" example:"Project X" validate:"required"`
	Content string `json:"content" example:"Depends on [[Roadmap]] and [[Budget]]"`
}

// UpdateContentRequest is the request body for a content-only update.
type UpdateContentRequest struct {
	Content string `json:"content" example:"Now only [[Budget]]"`
}

// CreateLinkRequest is the request body for a manual link.
type CreateLinkRequest struct {
	SourceID int64 `json:"source_id" example:"1" validate:"required"`
	TargetID int64 `json:"target_id" example:"2" validate:"required"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// LinkedNotesResponse lists the notes on one side of a note's edges.
type LinkedNotesResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Count int           `json:"count" example:"3" validate:"required"`
}

// LinkExistsResponse answers an edge existence check.
type LinkExistsResponse struct {
	Exists bool `json:"exists"`
}

// SearchResponse wraps ranked search results, best first.
type SearchResponse struct {
	Results []models.Note `json:"results" validate:"required"`
}

// HighlightResponse wraps ranked hits with marked-up title and snippet.
type HighlightResponse struct {
	Results []models.SearchHit `json:"results" validate:"required"`
}
