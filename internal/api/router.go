package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/lookup", h.LookupNote)
	r.Route("/notes/{id}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Put("/", h.UpdateNote)
		r.Delete("/", h.DeleteNote)
		r.Patch("/content", h.UpdateContent)
		r.Get("/links/outgoing", h.OutgoingLinks)
		r.Get("/links/incoming", h.IncomingLinks)
	})

	// Links.
	r.Post("/links", h.CreateLink)
	r.Delete("/links", h.DeleteLink)
	r.Get("/links/exists", h.LinkExists)

	// Search.
	r.Get("/search", h.Search)

	return r
}
