package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
)

const linkColumns = `id, source_note_id, target_note_id, created_at`

func collectLinks(rows *sql.Rows) ([]models.Link, error) {
	defer rows.Close()
	out := []models.Link{}
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.ID, &l.SourceNoteID, &l.TargetNoteID, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateLink inserts the edge source -> target. Both notes must be live,
// they must differ, and the edge must not already exist.
func (db *DB) CreateLink(ctx context.Context, source, target int64) (*models.Link, error) {
	if source == target {
		return nil, fmt.Errorf("index: link %d -> %d: %w: note cannot link to itself", source, target, apperr.ErrInvalid)
	}
	l := models.Link{SourceNoteID: source, TargetNoteID: target, CreatedAt: db.now()}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var live int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM notes WHERE id IN (?, ?) AND is_deleted = 0`, source, target).Scan(&live); err != nil {
			return wrapErr("create link", err)
		}
		if live != 2 {
			return fmt.Errorf("index: link %d -> %d: %w", source, target, apperr.ErrNotFound)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO links (source_note_id, target_note_id, created_at) VALUES (?, ?, ?)`,
			source, target, l.CreatedAt)
		if err != nil {
			return wrapErr("create link", err)
		}
		l.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLink returns the edge with the given id.
func (db *DB) GetLink(ctx context.Context, id int64) (*models.Link, error) {
	var l models.Link
	err := db.conn.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id).
		Scan(&l.ID, &l.SourceNoteID, &l.TargetNoteID, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: link %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("get link", err)
	}
	return &l, nil
}

// ListLinks returns every edge, newest first.
func (db *DB) ListLinks(ctx context.Context) ([]models.Link, error) {
	return db.queryLinks(ctx, "list links", `SELECT `+linkColumns+` FROM links ORDER BY created_at DESC, id DESC`)
}

// OutgoingLinks returns the edges whose source is noteID.
func (db *DB) OutgoingLinks(ctx context.Context, noteID int64) ([]models.Link, error) {
	return db.queryLinks(ctx, "outgoing links",
		`SELECT `+linkColumns+` FROM links WHERE source_note_id = ? ORDER BY created_at DESC, id DESC`, noteID)
}

// IncomingLinks returns the edges whose target is noteID.
func (db *DB) IncomingLinks(ctx context.Context, noteID int64) ([]models.Link, error) {
	return db.queryLinks(ctx, "incoming links",
		`SELECT `+linkColumns+` FROM links WHERE target_note_id = ? ORDER BY created_at DESC, id DESC`, noteID)
}

func (db *DB) queryLinks(ctx context.Context, op, query string, args ...any) ([]models.Link, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	links, err := collectLinks(rows)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return links, nil
}

// LinkExists reports whether the edge source -> target is stored.
func (db *DB) LinkExists(ctx context.Context, source, target int64) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM links WHERE source_note_id = ? AND target_note_id = ?)`,
		source, target).Scan(&exists)
	if err != nil {
		return false, wrapErr("link exists", err)
	}
	return exists, nil
}

// CountOutgoingLinks returns the number of edges leaving noteID.
func (db *DB) CountOutgoingLinks(ctx context.Context, noteID int64) (int, error) {
	return db.countLinks(ctx, `SELECT COUNT(*) FROM links WHERE source_note_id = ?`, noteID)
}

// CountIncomingLinks returns the number of edges arriving at noteID.
func (db *DB) CountIncomingLinks(ctx context.Context, noteID int64) (int, error) {
	return db.countLinks(ctx, `SELECT COUNT(*) FROM links WHERE target_note_id = ?`, noteID)
}

func (db *DB) countLinks(ctx context.Context, query string, noteID int64) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, query, noteID).Scan(&n); err != nil {
		return 0, wrapErr("count links", err)
	}
	return n, nil
}

// OutgoingNotes returns the live notes noteID links to, ordered by title.
func (db *DB) OutgoingNotes(ctx context.Context, noteID int64) ([]models.Note, error) {
	return db.linkedNotes(ctx, "outgoing notes", `
		SELECT n.id, n.title, n.content, n.created_at, n.updated_at, n.is_deleted
		FROM notes n
		JOIN links l ON l.target_note_id = n.id
		WHERE l.source_note_id = ? AND n.is_deleted = 0
		ORDER BY n.title`, noteID)
}

// IncomingNotes returns the live notes that link to noteID, ordered by title.
func (db *DB) IncomingNotes(ctx context.Context, noteID int64) ([]models.Note, error) {
	return db.linkedNotes(ctx, "incoming notes", `
		SELECT n.id, n.title, n.content, n.created_at, n.updated_at, n.is_deleted
		FROM notes n
		JOIN links l ON l.source_note_id = n.id
		WHERE l.target_note_id = ? AND n.is_deleted = 0
		ORDER BY n.title`, noteID)
}

func (db *DB) linkedNotes(ctx context.Context, op, query string, noteID int64) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, query, noteID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	notes, err := collectNotes(rows)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return notes, nil
}

// DeleteLink removes the edge with the given id.
func (db *DB) DeleteLink(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete link", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("delete link", err)
	}
	if n == 0 {
		return fmt.Errorf("index: link %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// DeleteLinkBetween removes the edge source -> target, reporting whether one existed.
func (db *DB) DeleteLinkBetween(ctx context.Context, source, target int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM links WHERE source_note_id = ? AND target_note_id = ?`, source, target)
	if err != nil {
		return false, wrapErr("delete link", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("delete link", err)
	}
	return n > 0, nil
}

// DeleteLinksForNote removes every edge where noteID is source or target.
func (db *DB) DeleteLinksForNote(ctx context.Context, noteID int64) (int64, error) {
	return deleteLinksForNote(ctx, db.conn, noteID)
}

func deleteLinksForNote(ctx context.Context, q dbtx, noteID int64) (int64, error) {
	res, err := q.ExecContext(ctx,
		`DELETE FROM links WHERE source_note_id = ? OR target_note_id = ?`, noteID, noteID)
	if err != nil {
		return 0, wrapErr("delete links for note", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("delete links for note", err)
	}
	return n, nil
}

// ApplyLinkDiff deletes source -> r for every r in remove and creates
// source -> a for every a in add, as one transaction. Additions re-check
// inside the transaction that the edge is absent, the target is live, and
// the target is not source; additions that fail the re-check are skipped.
// It returns how many edges were actually created and removed.
func (db *DB) ApplyLinkDiff(ctx context.Context, source int64, remove, add []int64) (created, removed int, err error) {
	if len(remove) == 0 && len(add) == 0 {
		return 0, 0, nil
	}
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getNote(ctx, tx, source); err != nil {
			return err
		}
		for _, target := range remove {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM links WHERE source_note_id = ? AND target_note_id = ?`, source, target)
			if err != nil {
				return wrapErr("apply link diff", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return wrapErr("apply link diff", err)
			}
			removed += int(n)
		}
		now := db.now()
		for _, target := range add {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO links (source_note_id, target_note_id, created_at)
				SELECT ?, ?, ?
				WHERE ? <> ?
				  AND EXISTS (SELECT 1 FROM notes WHERE id = ? AND is_deleted = 0)
				  AND NOT EXISTS (SELECT 1 FROM links WHERE source_note_id = ? AND target_note_id = ?)`,
				source, target, now,
				source, target,
				target,
				source, target)
			if err != nil {
				return wrapErr("apply link diff", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return wrapErr("apply link diff", err)
			}
			created += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, removed, nil
}
