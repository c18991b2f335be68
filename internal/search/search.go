// Package search normalizes user queries and runs them against the ranked
// full-text index. Results are ordered most relevant first (lowest score).
package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
)

// MaxResults caps every query.
const MaxResults = 50

// Index is the ranked query surface of the search index.
type Index interface {
	Search(ctx context.Context, query string, opts index.SearchOptions) ([]index.SearchResult, error)
}

// Options tune the engine. Zero values pick the defaults.
type Options struct {
	Limit         int
	SnippetTokens int
	// CacheTTL <= 0 disables result caching.
	CacheTTL time.Duration
}

// Engine executes normalized queries, optionally through a result cache.
type Engine struct {
	idx    Index
	opts   Options
	cache  *cache.Cache
	logger *slog.Logger

	// mu pairs the generation check with Set so a query that raced an
	// Invalidate never stores its pre-mutation result.
	mu  sync.Mutex
	gen uint64
}

// New returns an Engine over idx.
func New(idx Index, opts Options, logger *slog.Logger) *Engine {
	if opts.Limit <= 0 || opts.Limit > MaxResults {
		opts.Limit = MaxResults
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{idx: idx, opts: opts, logger: logger}
	if opts.CacheTTL > 0 {
		e.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return e
}

// PrepareQuery trims q and turns a single bare word into a prefix query.
// Anything with whitespace or a quote is passed through as written.
func PrepareQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	if strings.ContainsAny(q, " \t\r\n\"") || strings.HasSuffix(q, "*") {
		return q
	}
	return q + "*"
}

// Search returns the notes matching q over title and content.
func (e *Engine) Search(ctx context.Context, q string) ([]models.Note, error) {
	return e.notes(ctx, q, index.FieldAll)
}

// SearchByTitle matches q against titles only.
func (e *Engine) SearchByTitle(ctx context.Context, q string) ([]models.Note, error) {
	return e.notes(ctx, q, index.FieldTitle)
}

// SearchByContent matches q against content only.
func (e *Engine) SearchByContent(ctx context.Context, q string) ([]models.Note, error) {
	return e.notes(ctx, q, index.FieldContent)
}

// SearchWithHighlight returns hits with <mark>-wrapped title and snippet.
func (e *Engine) SearchWithHighlight(ctx context.Context, q string) ([]models.SearchHit, error) {
	return e.Query(ctx, q, index.FieldAll)
}

// Query runs q restricted to field. A blank query returns an empty result
// without touching the index.
func (e *Engine) Query(ctx context.Context, q string, field index.Field) ([]models.SearchHit, error) {
	prepared := PrepareQuery(q)
	if prepared == "" {
		return []models.SearchHit{}, nil
	}

	key := fmt.Sprintf("%d|%s", field, prepared)
	var gen uint64
	if e.cache != nil {
		gen = e.generation()
		if x, found := e.cache.Get(key); found {
			return slices.Clone(x.([]models.SearchHit)), nil
		}
	}

	started := time.Now()
	hits, err := e.idx.Search(ctx, prepared, index.SearchOptions{
		Field:         field,
		Limit:         e.opts.Limit,
		SnippetTokens: e.opts.SnippetTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %q: %w", prepared, err)
	}
	e.logger.Debug("search: query",
		slog.String("query", prepared),
		slog.String("field", field.String()),
		slog.Int("hits", len(hits)),
		slog.Duration("took", time.Since(started)))

	if e.cache != nil {
		e.mu.Lock()
		if e.gen == gen {
			e.cache.Set(key, slices.Clone(hits), cache.DefaultExpiration)
		}
		e.mu.Unlock()
	}
	return hits, nil
}

// Invalidate drops every cached result. Call it after any note mutation.
// Queries already in flight will not cache what they read.
func (e *Engine) Invalidate() {
	if e.cache == nil {
		return
	}
	e.mu.Lock()
	e.gen++
	e.cache.Flush()
	e.mu.Unlock()
}

func (e *Engine) generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

func (e *Engine) notes(ctx context.Context, q string, field index.Field) ([]models.Note, error) {
	hits, err := e.Query(ctx, q, field)
	if err != nil {
		return nil, err
	}
	out := make([]models.Note, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Note)
	}
	return out, nil
}
