package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func noteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return parseID(w, "note id", chi.URLParam(r, "id"))
}

// writeNote sends n with an ETag and answers a matching If-None-Match with 304.
func writeNote(w http.ResponseWriter, r *http.Request, n *models.Note) {
	etag := checksum.ETag(n)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// ListNotes handles GET /notes.
//
//	@Summary		List notes, optionally filtered by a title substring
//	@Tags			notes
//	@Produce		json
//	@Param			title	query		string	false	"Title substring"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.SearchByTitlePart(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	total, err := h.svc.CountNotes(r.Context())
	if err != nil {
		writeError(w, "count notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: total})
}

// LookupNote handles GET /notes/lookup.
//
//	@Summary		Get a note by exact title
//	@Tags			notes
//	@Produce		json
//	@Param			title	query		string	true	"Exact title"
//	@Success		200		{object}	models.Note
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/lookup [get]
func (h *Handler) LookupNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.GetNoteByTitle(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		writeError(w, "lookup note", err)
		return
	}
	writeNote(w, r, note)
}

// GetNote handles GET /notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Success		304	"Not modified"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeNote(w, r, note)
}

// CreateNote handles POST /notes.
//
//	@Summary		Create a note and link it to the notes it names
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Title, req.Content)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /notes/{id}.
//
//	@Summary		Replace title and content, re-syncing links
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"New title and content"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.UpdateNote(r.Context(), id, req.Title, req.Content)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// UpdateContent handles PATCH /notes/{id}/content.
//
//	@Summary		Replace only the content, re-syncing links
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int						true	"Note id"
//	@Param			body	body		UpdateContentRequest	true	"New content"
//	@Success		200		{object}	models.Note
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/content [patch]
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var req UpdateContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.UpdateNoteContent(r.Context(), id, req.Content)
	if err != nil {
		writeError(w, "update content", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes/{id}.
//
//	@Summary		Soft-delete a note and every edge touching it
//	@Tags			notes
//	@Param			id	path	int	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OutgoingLinks handles GET /notes/{id}/links/outgoing.
//
//	@Summary		Notes this note links to, by title
//	@Tags			links
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	LinkedNotesResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/links/outgoing [get]
func (h *Handler) OutgoingLinks(w http.ResponseWriter, r *http.Request) {
	h.linked(w, r, h.svc.OutgoingLinkedNotes, h.svc.CountOutgoingLinks)
}

// IncomingLinks handles GET /notes/{id}/links/incoming.
//
//	@Summary		Notes linking to this note (backlinks), by title
//	@Tags			links
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	LinkedNotesResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/links/incoming [get]
func (h *Handler) IncomingLinks(w http.ResponseWriter, r *http.Request) {
	h.linked(w, r, h.svc.IncomingLinkedNotes, h.svc.CountIncomingLinks)
}

func (h *Handler) linked(
	w http.ResponseWriter, r *http.Request,
	notes func(ctx context.Context, id int64) ([]models.Note, error),
	count func(ctx context.Context, id int64) (int, error),
) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	list, err := notes(r.Context(), id)
	if err != nil {
		writeError(w, "linked notes", err)
		return
	}
	n, err := count(r.Context(), id)
	if err != nil {
		writeError(w, "count links", err)
		return
	}
	writeJSON(w, http.StatusOK, LinkedNotesResponse{Notes: list, Count: n})
}

// CreateLink handles POST /links.
//
//	@Summary		Create a manual link; the next sync of the source may remove it
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateLinkRequest	true	"Edge endpoints"
//	@Success		201		{object}	models.Link
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links [post]
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	link, err := h.svc.CreateLink(r.Context(), req.SourceID, req.TargetID)
	if err != nil {
		writeError(w, "create link", err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// DeleteLink handles DELETE /links?source=&target=.
//
//	@Summary		Delete the edge source -> target
//	@Tags			links
//	@Param			source	query	int	true	"Source note id"
//	@Param			target	query	int	true	"Target note id"
//	@Success		204		"Link deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links [delete]
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	source, target, ok := linkEnds(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteLink(r.Context(), source, target); err != nil {
		writeError(w, "delete link", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkExists handles GET /links/exists?source=&target=.
//
//	@Summary		Check whether the edge source -> target exists
//	@Tags			links
//	@Produce		json
//	@Param			source	query		int	true	"Source note id"
//	@Param			target	query		int	true	"Target note id"
//	@Success		200		{object}	LinkExistsResponse
//	@Security		BearerAuth
//	@Router			/links/exists [get]
func (h *Handler) LinkExists(w http.ResponseWriter, r *http.Request) {
	source, target, ok := linkEnds(w, r)
	if !ok {
		return
	}
	exists, err := h.svc.LinkExists(r.Context(), source, target)
	if err != nil {
		writeError(w, "link exists", err)
		return
	}
	writeJSON(w, http.StatusOK, LinkExistsResponse{Exists: exists})
}

func linkEnds(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	q := r.URL.Query()
	source, ok := parseID(w, "source", q.Get("source"))
	if !ok {
		return 0, 0, false
	}
	target, ok := parseID(w, "target", q.Get("target"))
	if !ok {
		return 0, 0, false
	}
	return source, target, true
}

// Search handles GET /search.
//
//	@Summary		Ranked full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	true	"Search query; a single word matches as a prefix"
//	@Param			field		query		string	false	"Restrict to one field"	Enums(all, title, content)
//	@Param			highlight	query		bool	false	"Return hits with <mark> highlights"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}

	field, err := index.ParseField(q.Get("field"))
	if err != nil {
		writeError(w, "search", err)
		return
	}

	hits, err := h.svc.Query(r.Context(), query, field)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if q.Get("highlight") == "true" {
		writeJSON(w, http.StatusOK, HighlightResponse{Results: hits})
		return
	}
	notes := make([]models.Note, 0, len(hits))
	for _, hit := range hits {
		notes = append(notes, hit.Note)
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: notes})
}
