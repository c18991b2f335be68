package index

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/notegraph/internal/apperr"
)

// constraintKind maps SQLite constraint violations onto apperr kinds.
func constraintKind(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return nil
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return apperr.ErrAlreadyExists
	case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
		return apperr.ErrInvalid
	case sqlite3.ErrConstraintForeignKey:
		return apperr.ErrNotFound
	}
	return nil
}

// isQuerySyntaxError reports whether err is FTS5 rejecting the MATCH expression.
func isQuerySyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5:") ||
		strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "unterminated string")
}

func wrapErr(op string, err error) error {
	if kind := constraintKind(err); kind != nil {
		return fmt.Errorf("index: %s: %w: %w", op, kind, err)
	}
	return fmt.Errorf("index: %s: %w", op, err)
}
