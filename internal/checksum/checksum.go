// Package checksum derives content digests used as HTTP entity tags.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/starford/notegraph/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Note digests everything a client sees of n. The title is length-prefixed.
func Note(n *models.Note) string {
	buf := make([]byte, 0, len(n.Title)+len(n.Content)+48)
	buf = strconv.AppendInt(buf, n.ID, 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(len(n.Title)), 10)
	buf = append(buf, ':')
	buf = append(buf, n.Title...)
	buf = append(buf, n.Content...)
	buf = strconv.AppendInt(buf, n.UpdatedAt.UnixNano(), 10)
	return Sum(buf)
}

// ETag quotes the note digest for an ETag header.
func ETag(n *models.Note) string {
	return `"` + Note(n) + `"`
}
