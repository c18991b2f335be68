// Package noteservice is the boundary the HTTP and MCP adapters call into.
// It validates input, serializes writers, and keeps the link graph and the
// search cache in step with every note mutation.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/linkgraph"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/search"
	"github.com/starford/notegraph/internal/sse"
)

// MaxTitleLength is measured in characters, not bytes.
const MaxTitleLength = 255

// Store is the persistence the service drives.
type Store interface {
	index.NoteStore
	index.LinkStore
}

// Notifier receives every committed mutation. *sse.Broker implements it.
type Notifier interface {
	PublishNoteEvent(ev sse.NoteEvent)
}

type nopNotifier struct{}

func (nopNotifier) PublishNoteEvent(sse.NoteEvent) {}

// Option configures a Service.
type Option func(*Service)

// WithNotifier publishes note and graph changes to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notify = n
	}
}

// Service coordinates the note store, link graph, and search engine.
type Service struct {
	// mu serializes writers; reads go straight to the store.
	mu     sync.Mutex
	db     Store
	graph  *linkgraph.Synchronizer
	search *search.Engine
	notify Notifier
	logger *slog.Logger
}

// NewService creates a new note service.
func NewService(db Store, graph *linkgraph.Synchronizer, engine *search.Engine, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{db: db, graph: graph, search: engine, notify: nopNotifier{}, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateTitle checks the title rules shared by create and update.
func ValidateTitle(title string) error {
	err := validation.Validate(strings.TrimSpace(title),
		validation.Required.Error("must not be blank"),
	)
	if err == nil {
		err = validation.Validate(title,
			validation.RuneLength(1, MaxTitleLength).Error(fmt.Sprintf("must be at most %d characters", MaxTitleLength)),
			validation.By(singleLine),
		)
	}
	if err != nil {
		return fmt.Errorf("%w: title %v", apperr.ErrInvalid, err)
	}
	return nil
}

func singleLine(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, "\r\n") {
		return errors.New("must not contain line breaks")
	}
	return nil
}

func validateID(what string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s id must be positive, got %d", apperr.ErrInvalid, what, id)
	}
	return nil
}

// CreateNote stores a new note and links it to the notes its content names.
func (s *Service) CreateNote(ctx context.Context, title, content string) (*models.Note, error) {
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureTitleFree(ctx, title, 0); err != nil {
		return nil, err
	}
	n, err := s.db.CreateNote(ctx, title, content)
	if err != nil {
		return nil, err
	}
	s.search.Invalidate()
	res, err := s.syncLinks(ctx, n.ID, content)
	if err != nil {
		return nil, err
	}
	s.notify.PublishNoteEvent(sse.NoteEvent{
		Kind: sse.NoteCreated, NoteID: n.ID, Title: n.Title, LinksChanged: res.Created > 0,
	})
	s.logger.Info("note created", slog.Int64("note_id", n.ID), slog.String("title", n.Title))
	return n, nil
}

// GetNote returns the live note with id.
func (s *Service) GetNote(ctx context.Context, id int64) (*models.Note, error) {
	if err := validateID("note", id); err != nil {
		return nil, err
	}
	return s.db.GetNote(ctx, id)
}

// GetNoteByTitle looks a note up by exact title after trimming. A blank
// title simply finds nothing.
func (s *Service) GetNoteByTitle(ctx context.Context, title string) (*models.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("noteservice: blank title: %w", apperr.ErrNotFound)
	}
	return s.db.GetNoteByTitle(ctx, title)
}

// ListNotes returns every live note, most recently updated first.
func (s *Service) ListNotes(ctx context.Context) ([]models.Note, error) {
	return s.db.ListNotes(ctx)
}

// SearchByTitlePart returns notes whose title contains part, ordered by
// title. A blank part lists everything.
func (s *Service) SearchByTitlePart(ctx context.Context, part string) ([]models.Note, error) {
	part = strings.TrimSpace(part)
	if part == "" {
		return s.ListNotes(ctx)
	}
	return s.db.SearchTitlePart(ctx, part)
}

// CountNotes returns the number of live notes.
func (s *Service) CountNotes(ctx context.Context) (int, error) {
	return s.db.CountNotes(ctx)
}

// UpdateNote replaces title and content, then re-derives outgoing links.
func (s *Service) UpdateNote(ctx context.Context, id int64, title, content string) (*models.Note, error) {
	if err := validateID("note", id); err != nil {
		return nil, err
	}
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureTitleFree(ctx, title, id); err != nil {
		return nil, err
	}
	return s.update(ctx, id, title, content)
}

// UpdateNoteContent replaces only the content, then re-derives outgoing links.
func (s *Service) UpdateNoteContent(ctx context.Context, id int64, content string) (*models.Note, error) {
	if err := validateID("note", id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.db.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, cur.Title, content)
}

func (s *Service) update(ctx context.Context, id int64, title, content string) (*models.Note, error) {
	n, err := s.db.UpdateNote(ctx, id, title, content)
	if err != nil {
		return nil, err
	}
	s.search.Invalidate()
	res, err := s.syncLinks(ctx, id, content)
	if err != nil {
		return nil, err
	}
	s.notify.PublishNoteEvent(sse.NoteEvent{
		Kind: sse.NoteUpdated, NoteID: id, Title: n.Title, LinksChanged: res.Created+res.Removed > 0,
	})
	s.logger.Debug("note updated", slog.Int64("note_id", id))
	return n, nil
}

// DeleteNote soft-deletes the note and drops every edge touching it.
func (s *Service) DeleteNote(ctx context.Context, id int64) error {
	if err := validateID("note", id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.db.SoftDeleteNote(ctx, id)
	if err != nil {
		return err
	}
	s.search.Invalidate()
	s.notify.PublishNoteEvent(sse.NoteEvent{Kind: sse.NoteDeleted, NoteID: id, LinksChanged: removed > 0})
	s.logger.Info("note deleted", slog.Int64("note_id", id), slog.Int64("links_removed", removed))
	return nil
}

// OutgoingLinkedNotes returns the live notes id links to, by title.
func (s *Service) OutgoingLinkedNotes(ctx context.Context, id int64) ([]models.Note, error) {
	if id <= 0 {
		return []models.Note{}, nil
	}
	return s.db.OutgoingNotes(ctx, id)
}

// IncomingLinkedNotes returns the live notes linking to id, by title.
func (s *Service) IncomingLinkedNotes(ctx context.Context, id int64) ([]models.Note, error) {
	if id <= 0 {
		return []models.Note{}, nil
	}
	return s.db.IncomingNotes(ctx, id)
}

// CountOutgoingLinks is 0 for a non-positive id.
func (s *Service) CountOutgoingLinks(ctx context.Context, id int64) (int, error) {
	if id <= 0 {
		return 0, nil
	}
	return s.db.CountOutgoingLinks(ctx, id)
}

// CountIncomingLinks is 0 for a non-positive id.
func (s *Service) CountIncomingLinks(ctx context.Context, id int64) (int, error) {
	if id <= 0 {
		return 0, nil
	}
	return s.db.CountIncomingLinks(ctx, id)
}

// LinkExists is false when either id is non-positive.
func (s *Service) LinkExists(ctx context.Context, source, target int64) (bool, error) {
	if source <= 0 || target <= 0 {
		return false, nil
	}
	return s.db.LinkExists(ctx, source, target)
}

// CreateLink adds a manual edge. The next sync of source removes it unless
// source's content names target.
func (s *Service) CreateLink(ctx context.Context, source, target int64) (*models.Link, error) {
	if err := validateID("source", source); err != nil {
		return nil, err
	}
	if err := validateID("target", target); err != nil {
		return nil, err
	}
	if source == target {
		return nil, fmt.Errorf("%w: note %d cannot link to itself", apperr.ErrInvalid, source)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	link, err := s.db.CreateLink(ctx, source, target)
	if err != nil {
		return nil, err
	}
	s.notify.PublishNoteEvent(sse.NoteEvent{Kind: sse.NoteLinked, NoteID: source, LinksChanged: true})
	return link, nil
}

// DeleteLink removes the edge source -> target.
func (s *Service) DeleteLink(ctx context.Context, source, target int64) error {
	if err := validateID("source", source); err != nil {
		return err
	}
	if err := validateID("target", target); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.db.DeleteLinkBetween(ctx, source, target)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("noteservice: link %d -> %d: %w", source, target, apperr.ErrNotFound)
	}
	s.notify.PublishNoteEvent(sse.NoteEvent{Kind: sse.NoteLinked, NoteID: source, LinksChanged: true})
	return nil
}

// Search ranks notes against query over title and content.
func (s *Service) Search(ctx context.Context, query string) ([]models.Note, error) {
	return s.search.Search(ctx, query)
}

// SearchByTitle ranks notes against query over titles only.
func (s *Service) SearchByTitle(ctx context.Context, query string) ([]models.Note, error) {
	return s.search.SearchByTitle(ctx, query)
}

// SearchByContent ranks notes against query over content only.
func (s *Service) SearchByContent(ctx context.Context, query string) ([]models.Note, error) {
	return s.search.SearchByContent(ctx, query)
}

// SearchWithHighlight ranks notes and marks the matched spans.
func (s *Service) SearchWithHighlight(ctx context.Context, query string) ([]models.SearchHit, error) {
	return s.search.SearchWithHighlight(ctx, query)
}

// Query ranks notes against query restricted to field, with highlights.
func (s *Service) Query(ctx context.Context, query string, field index.Field) ([]models.SearchHit, error) {
	return s.search.Query(ctx, query, field)
}

// Reconcile re-derives the outgoing edges of every live note.
func (s *Service) Reconcile(ctx context.Context) (linkgraph.ReconcileStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.graph.Reconcile(ctx)
	if err != nil {
		return stats, err
	}
	if stats.Changed > 0 {
		s.notify.PublishNoteEvent(sse.NoteEvent{Kind: sse.NoteLinked, LinksChanged: true})
	}
	return stats, nil
}

// ensureTitleFree fails when a live note other than self already owns title.
func (s *Service) ensureTitleFree(ctx context.Context, title string, self int64) error {
	existing, err := s.db.GetNoteByTitle(ctx, title)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != self {
		return fmt.Errorf("noteservice: title %q: %w", title, apperr.ErrAlreadyExists)
	}
	return nil
}

// syncLinks runs after the note write has committed. A failure leaves the
// note saved; the next sync of the same note converges.
func (s *Service) syncLinks(ctx context.Context, id int64, content string) (linkgraph.Result, error) {
	res, err := s.graph.Sync(ctx, id, content)
	if err != nil {
		s.logger.Error("link sync failed", slog.Int64("note_id", id), slog.String("error", err.Error()))
		return res, fmt.Errorf("noteservice: sync links for note %d: %w", id, err)
	}
	return res, nil
}
