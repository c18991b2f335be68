package index

import (
	"context"

	"github.com/starford/notegraph/internal/models"
)

// NoteStore is the persistence surface for notes.
type NoteStore interface {
	CreateNote(ctx context.Context, title, content string) (*models.Note, error)
	GetNote(ctx context.Context, id int64) (*models.Note, error)
	GetNoteByTitle(ctx context.Context, title string) (*models.Note, error)
	ResolveTitles(ctx context.Context, titles []string) (map[string]int64, error)
	ListNotes(ctx context.Context) ([]models.Note, error)
	SearchTitlePart(ctx context.Context, part string) ([]models.Note, error)
	UpdateNote(ctx context.Context, id int64, title, content string) (*models.Note, error)
	SoftDeleteNote(ctx context.Context, id int64) (int64, error)
	CountNotes(ctx context.Context) (int, error)
}

// LinkStore is the persistence surface for directed edges between notes.
type LinkStore interface {
	CreateLink(ctx context.Context, source, target int64) (*models.Link, error)
	GetLink(ctx context.Context, id int64) (*models.Link, error)
	ListLinks(ctx context.Context) ([]models.Link, error)
	OutgoingLinks(ctx context.Context, noteID int64) ([]models.Link, error)
	IncomingLinks(ctx context.Context, noteID int64) ([]models.Link, error)
	LinkExists(ctx context.Context, source, target int64) (bool, error)
	CountOutgoingLinks(ctx context.Context, noteID int64) (int, error)
	CountIncomingLinks(ctx context.Context, noteID int64) (int, error)
	OutgoingNotes(ctx context.Context, noteID int64) ([]models.Note, error)
	IncomingNotes(ctx context.Context, noteID int64) ([]models.Note, error)
	DeleteLink(ctx context.Context, id int64) error
	DeleteLinkBetween(ctx context.Context, source, target int64) (bool, error)
	DeleteLinksForNote(ctx context.Context, noteID int64) (int64, error)
	ApplyLinkDiff(ctx context.Context, source int64, remove, add []int64) (created, removed int, err error)
}

// SearchIndex runs ranked full-text queries over live notes.
type SearchIndex interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)
}

// Verify *DB satisfies the store interfaces at compile time.
var (
	_ NoteStore   = (*DB)(nil)
	_ LinkStore   = (*DB)(nil)
	_ SearchIndex = (*DB)(nil)
)
