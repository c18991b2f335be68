// Package linkgraph keeps the stored outgoing edges of a note equal to the
// wiki-links its content names. Edges are always re-derived from the full
// content and applied as a diff, never patched from edit events.
package linkgraph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
)

// Store is what the synchronizer needs from the note and link stores.
type Store interface {
	ResolveTitles(ctx context.Context, titles []string) (map[string]int64, error)
	OutgoingLinks(ctx context.Context, noteID int64) ([]models.Link, error)
	ApplyLinkDiff(ctx context.Context, source int64, remove, add []int64) (created, removed int, err error)
	ListNotes(ctx context.Context) ([]models.Note, error)
}

// Diff is the planned change to one note's outgoing edges.
type Diff struct {
	NoteID     int64
	Wanted     []int64
	ToDelete   []int64
	ToCreate   []int64
	Unresolved []string
}

// Empty reports whether applying d would write nothing.
func (d Diff) Empty() bool {
	return len(d.ToDelete) == 0 && len(d.ToCreate) == 0
}

// Result counts the edges a sync actually changed.
type Result struct {
	Created int
	Removed int
}

// ReconcileStats summarizes a full-graph pass.
type ReconcileStats struct {
	Notes   int
	Changed int
	Created int
	Removed int
}

// Synchronizer derives and applies link diffs.
type Synchronizer struct {
	store  Store
	logger *slog.Logger
}

// New returns a Synchronizer over store. A nil logger discards output.
func New(store Store, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synchronizer{store: store, logger: logger}
}

// Plan computes the diff for noteID without writing anything.
func (s *Synchronizer) Plan(ctx context.Context, noteID int64, content string) (Diff, error) {
	d := Diff{NoteID: noteID}

	titles := parser.ExtractLinks(content).Sorted()
	resolved := map[string]int64{}
	if len(titles) > 0 {
		var err error
		if resolved, err = s.store.ResolveTitles(ctx, titles); err != nil {
			return Diff{}, fmt.Errorf("linkgraph: resolve titles: %w", err)
		}
	}

	wanted := make(map[int64]struct{}, len(resolved))
	for _, title := range titles {
		id, ok := resolved[title]
		if !ok {
			d.Unresolved = append(d.Unresolved, title)
			continue
		}
		if id == noteID {
			continue
		}
		wanted[id] = struct{}{}
	}

	links, err := s.store.OutgoingLinks(ctx, noteID)
	if err != nil {
		return Diff{}, fmt.Errorf("linkgraph: outgoing links: %w", err)
	}
	current := make(map[int64]struct{}, len(links))
	for _, l := range links {
		current[l.TargetNoteID] = struct{}{}
	}

	for id := range current {
		if _, ok := wanted[id]; !ok {
			d.ToDelete = append(d.ToDelete, id)
		}
	}
	for id := range wanted {
		d.Wanted = append(d.Wanted, id)
		if _, ok := current[id]; !ok {
			d.ToCreate = append(d.ToCreate, id)
		}
	}
	slices.Sort(d.Wanted)
	slices.Sort(d.ToDelete)
	slices.Sort(d.ToCreate)
	return d, nil
}

// Sync makes the outgoing edges of noteID match the wiki-links in content.
// The diff is applied in one transaction; an empty diff writes nothing.
func (s *Synchronizer) Sync(ctx context.Context, noteID int64, content string) (Result, error) {
	d, err := s.Plan(ctx, noteID, content)
	if err != nil {
		return Result{}, err
	}
	for _, title := range d.Unresolved {
		s.logger.Debug("linkgraph: unresolved link", slog.Int64("note_id", noteID), slog.String("title", title))
	}
	if d.Empty() {
		return Result{}, nil
	}

	created, removed, err := s.store.ApplyLinkDiff(ctx, noteID, d.ToDelete, d.ToCreate)
	if err != nil {
		return Result{}, fmt.Errorf("linkgraph: apply diff for note %d: %w", noteID, err)
	}
	for _, id := range d.ToDelete {
		s.logger.Debug("linkgraph: edge removed", slog.Int64("source", noteID), slog.Int64("target", id))
	}
	for _, id := range d.ToCreate {
		s.logger.Debug("linkgraph: edge created", slog.Int64("source", noteID), slog.Int64("target", id))
	}
	s.logger.Info("linkgraph: synced",
		slog.Int64("note_id", noteID),
		slog.Int("created", created),
		slog.Int("removed", removed))
	return Result{Created: created, Removed: removed}, nil
}

// Reconcile re-syncs every live note. Edges to notes created after their
// referrers only appear once the referrer is synced again; this does that
// for the whole graph.
func (s *Synchronizer) Reconcile(ctx context.Context) (ReconcileStats, error) {
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("linkgraph: list notes: %w", err)
	}

	var stats ReconcileStats
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		res, err := s.Sync(ctx, n.ID, n.Content)
		if err != nil {
			return stats, err
		}
		stats.Notes++
		if res.Created > 0 || res.Removed > 0 {
			stats.Changed++
		}
		stats.Created += res.Created
		stats.Removed += res.Removed
	}
	s.logger.Info("linkgraph: reconciled",
		slog.Int("notes", stats.Notes),
		slog.Int("changed", stats.Changed),
		slog.Int("created", stats.Created),
		slog.Int("removed", stats.Removed))
	return stats, nil
}
