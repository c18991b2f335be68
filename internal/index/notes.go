package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
)

const noteColumns = `id, title, content, created_at, updated_at, is_deleted`

// maxTitlesPerQuery keeps IN (...) lists under SQLite's bound-parameter limit.
const maxTitlesPerQuery = 500

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(s rowScanner) (models.Note, error) {
	var n models.Note
	err := s.Scan(&n.ID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt, &n.Deleted)
	return n, err
}

func collectNotes(rows *sql.Rows) ([]models.Note, error) {
	defer rows.Close()
	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CreateNote inserts a note and indexes it for search in one transaction.
// A live note with the same title yields apperr.ErrAlreadyExists.
func (db *DB) CreateNote(ctx context.Context, title, content string) (*models.Note, error) {
	now := db.now()
	n := models.Note{Title: title, Content: content, CreatedAt: now, UpdatedAt: now}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO notes (title, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			title, content, now, now)
		if err != nil {
			return wrapErr("create note", err)
		}
		if n.ID, err = res.LastInsertId(); err != nil {
			return wrapErr("create note", err)
		}
		return ftsUpsert(ctx, tx, n.ID, title, content)
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetNote returns the live note with the given id.
func (db *DB) GetNote(ctx context.Context, id int64) (*models.Note, error) {
	return getNote(ctx, db.conn, id)
}

func getNote(ctx context.Context, q dbtx, id int64) (*models.Note, error) {
	n, err := scanNote(q.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND is_deleted = 0`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("get note", err)
	}
	return &n, nil
}

// GetNoteByTitle returns the live note whose title matches exactly.
func (db *DB) GetNoteByTitle(ctx context.Context, title string) (*models.Note, error) {
	n, err := scanNote(db.conn.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE title = ? AND is_deleted = 0`, title))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %q: %w", title, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("get note by title", err)
	}
	return &n, nil
}

// ResolveTitles maps each title that names a live note to that note's id.
// Titles without a match are absent from the result.
func (db *DB) ResolveTitles(ctx context.Context, titles []string) (map[string]int64, error) {
	out := make(map[string]int64, len(titles))
	for start := 0; start < len(titles); start += maxTitlesPerQuery {
		end := min(start+maxTitlesPerQuery, len(titles))
		chunk := titles[start:end]

		args := make([]any, len(chunk))
		for i, t := range chunk {
			args[i] = t
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := db.conn.QueryContext(ctx,
			`SELECT id, title FROM notes WHERE is_deleted = 0 AND title IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, wrapErr("resolve titles", err)
		}
		for rows.Next() {
			var (
				id    int64
				title string
			)
			if err := rows.Scan(&id, &title); err != nil {
				rows.Close()
				return nil, wrapErr("resolve titles", err)
			}
			out[title] = id
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, wrapErr("resolve titles", err)
		}
	}
	return out, nil
}

// ListNotes returns every live note, most recently updated first.
func (db *DB) ListNotes(ctx context.Context) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE is_deleted = 0 ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, wrapErr("list notes", err)
	}
	notes, err := collectNotes(rows)
	if err != nil {
		return nil, wrapErr("list notes", err)
	}
	return notes, nil
}

// SearchTitlePart returns live notes whose title contains part
// (ASCII case-insensitive), ordered by title.
func (db *DB) SearchTitlePart(ctx context.Context, part string) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes
		 WHERE is_deleted = 0 AND title LIKE ? ESCAPE '\'
		 ORDER BY title`, "%"+escapeLike(part)+"%")
	if err != nil {
		return nil, wrapErr("search title part", err)
	}
	notes, err := collectNotes(rows)
	if err != nil {
		return nil, wrapErr("search title part", err)
	}
	return notes, nil
}

// UpdateNote replaces title and content of a live note and reindexes it.
// updated_at only moves, and the write only happens, when something changed.
func (db *DB) UpdateNote(ctx context.Context, id int64, title, content string) (*models.Note, error) {
	var out *models.Note
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getNote(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.Title == title && cur.Content == content {
			out = cur
			return nil
		}

		updated := nextTimestamp(cur.UpdatedAt, db.now())
		if _, err := tx.ExecContext(ctx,
			`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
			title, content, updated, id); err != nil {
			return wrapErr("update note", err)
		}
		if err := ftsUpsert(ctx, tx, id, title, content); err != nil {
			return err
		}

		cur.Title, cur.Content, cur.UpdatedAt = title, content, updated
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SoftDeleteNote marks a note deleted, removes every edge touching it, and
// drops it from the search index, all in one transaction. It returns the
// number of edges removed.
func (db *DB) SoftDeleteNote(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE notes SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0`,
			db.now(), id)
		if err != nil {
			return wrapErr("delete note", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return wrapErr("delete note", err)
		} else if n == 0 {
			return fmt.Errorf("index: note %d: %w", id, apperr.ErrNotFound)
		}
		n, err := deleteLinksForNote(ctx, tx, id)
		if err != nil {
			return err
		}
		removed = n
		return ftsDelete(ctx, tx, id)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// CountNotes returns the number of live notes.
func (db *DB) CountNotes(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE is_deleted = 0`).Scan(&n); err != nil {
		return 0, wrapErr("count notes", err)
	}
	return n, nil
}

// nextTimestamp returns now, nudged past prev when the clock has not moved.
func nextTimestamp(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
