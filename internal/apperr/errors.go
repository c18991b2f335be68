// Package apperr defines the error kinds surfaced at the service boundary.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid marks input rejected before any write: blank or malformed
	// titles, self-referential links, non-positive ids, bad query syntax.
	ErrInvalid  = errors.New("invalid")
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is a validation failure too: errors.Is(err, ErrInvalid) holds.
	ErrAlreadyExists = fmt.Errorf("%w: already exists", ErrInvalid)
)
