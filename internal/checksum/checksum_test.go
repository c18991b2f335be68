package checksum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/starford/notegraph/internal/models"
)

func TestSum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sum(nil))
}

func TestNote(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	base := models.Note{ID: 1, Title: "ab", Content: "c", UpdatedAt: at}

	same := base
	assert.Equal(t, Note(&base), Note(&same))

	shifted := base
	shifted.Title, shifted.Content = "a", "bc"
	assert.NotEqual(t, Note(&base), Note(&shifted))

	touched := base
	touched.UpdatedAt = at.Add(time.Millisecond)
	assert.NotEqual(t, Note(&base), Note(&touched))

	assert.Equal(t, `"`+Note(&base)+`"`, ETag(&base))
}
