//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/notegraph/internal/apperr"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			title,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, q dbtx, id int64, title, content string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM notes_fts WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO notes_fts (rowid, title, content) VALUES (?, ?, ?)`, id, title, content); err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(ctx context.Context, q dbtx, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM notes_fts WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// Search runs an FTS5 MATCH ranked by bm25 (lower is better). Hits are
// hydrated from the notes table and filtered on the live flag there.
func (db *DB) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	opts = opts.withDefaults()

	match := query
	if col := opts.Field.String(); col != "" {
		match = fmt.Sprintf("{%s} : (%s)", col, query)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT n.id, n.title, n.content, n.created_at, n.updated_at, n.is_deleted,
		       highlight(notes_fts, 0, ?, ?),
		       snippet(notes_fts, 1, ?, ?, ?, ?),
		       bm25(notes_fts) AS score
		FROM notes_fts
		JOIN notes n ON n.id = notes_fts.rowid
		WHERE notes_fts MATCH ? AND n.is_deleted = 0
		ORDER BY score, n.id
		LIMIT ?
	`, MarkOpen, MarkClose, MarkOpen, MarkClose, Ellipsis, opts.SnippetTokens, match, opts.Limit)
	if err != nil {
		return nil, searchErr(err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Note.ID, &r.Note.Title, &r.Note.Content, &r.Note.CreatedAt,
			&r.Note.UpdatedAt, &r.Note.Deleted, &r.HighlightedTitle, &r.HighlightedSnippet, &r.Score); err != nil {
			return nil, searchErr(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, searchErr(err)
	}
	return out, nil
}

func searchErr(err error) error {
	if isQuerySyntaxError(err) {
		return fmt.Errorf("index: search: %w: %v", apperr.ErrInvalid, err)
	}
	return fmt.Errorf("index: search: %w", err)
}
