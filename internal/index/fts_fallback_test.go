//go:build !sqlite_fts5

package index

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notegraph/internal/apperr"
)

func TestTokenize(t *testing.T) {
	toks := tokenize("Crème-brûlée, 2x!")
	got := make([]string, 0, len(toks))
	for _, tok := range toks {
		got = append(got, tok.folded)
	}
	assert.Equal(t, []string{"creme", "brulee", "2x"}, got)
	assert.Equal(t, 0, toks[0].start)
	assert.Equal(t, "brûlée", "Crème-brûlée, 2x!"[toks[1].start:toks[1].end])
}

func TestParseQuery(t *testing.T) {
	pq, err := parseQuery(`alpha "beta gamma" delt* AND "pre fix"*`)
	require.NoError(t, err)
	assert.Equal(t, []clause{
		{terms: []string{"alpha"}},
		{terms: []string{"beta", "gamma"}},
		{terms: []string{"delt"}, prefix: true},
		{terms: []string{"pre", "fix"}, prefix: true},
	}, pq.clauses)
	assert.Equal(t, []group{{must: []int{0, 1, 2, 3}}}, pq.groups)

	pq, err = parseQuery(`!!! ???`)
	require.NoError(t, err)
	assert.Empty(t, pq.clauses)
	assert.Empty(t, pq.groups)

	_, err = parseQuery(`"open`)
	assert.Error(t, err)
}

func TestParseQuery_Operators(t *testing.T) {
	pq, err := parseQuery(`apple NOT pie OR pear`)
	require.NoError(t, err)
	assert.Equal(t, []clause{
		{terms: []string{"apple"}},
		{terms: []string{"pie"}, negate: true},
		{terms: []string{"pear"}},
	}, pq.clauses)
	assert.Equal(t, []group{{must: []int{0}, not: []int{1}}, {must: []int{2}}}, pq.groups)

	for _, bad := range []string{"NOT pie", "apple OR", "apple AND OR pear", "OR", "apple OR NOT pie"} {
		_, err := parseQuery(bad)
		assert.Error(t, err, bad)
	}
}

func TestFallback_Not(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustNote(t, db, "Apple pie", "")
	tree := mustNote(t, db, "Apple tree", "")

	results, err := db.Search(ctx, "apple NOT pie", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, tree.ID, results[0].Note.ID)
	assert.Equal(t, "<mark>Apple</mark> tree", results[0].HighlightedTitle)
}

func TestFallback_Or(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	apple := mustNote(t, db, "Apple", "fruit")
	pear := mustNote(t, db, "Pear", "fruit")
	mustNote(t, db, "Plum", "fruit")

	results, err := db.Search(ctx, "apple OR pear", SearchOptions{})
	require.NoError(t, err)
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Note.ID)
	}
	assert.ElementsMatch(t, []int64{apple.ID, pear.ID}, ids)

	results, err = db.Search(ctx, "fruit AND apple", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, apple.ID, results[0].Note.ID)

	_, err = db.Search(ctx, "apple OR", SearchOptions{})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestFallback_Phrase(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	hit := mustNote(t, db, "Hit", "the quick brown fox")
	mustNote(t, db, "Miss", "brown and quick")

	results, err := db.Search(ctx, `"quick brown"`, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, hit.ID, results[0].Note.ID)
	assert.Equal(t, "the <mark>quick brown</mark> fox", results[0].HighlightedSnippet)
}

func TestFallback_ImplicitAnd(t *testing.T) {
	db := testDB(t)
	both := mustNote(t, db, "Both", "red green")
	mustNote(t, db, "One", "red only")

	results, err := db.Search(context.Background(), "red green", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, both.ID, results[0].Note.ID)
}

func TestFallback_Snippet(t *testing.T) {
	f := newField(strings.Repeat("filler ", 40)+"needle"+strings.Repeat(" filler", 40), true)
	f.occurrences(clause{terms: []string{"needle"}})

	s := f.snippet(8)
	assert.True(t, strings.HasPrefix(s, Ellipsis))
	assert.True(t, strings.HasSuffix(s, Ellipsis))
	assert.Contains(t, s, "<mark>needle</mark>")
	assert.Equal(t, 8, strings.Count(s, "filler")+strings.Count(s, "needle"))

	short := newField("no match here", true)
	assert.Equal(t, "no match here", short.snippet(32))
}

func TestFallback_SnippetWithoutContentMatch(t *testing.T) {
	f := newField(strings.Repeat("word ", 50), true)
	s := f.snippet(4)
	assert.Equal(t, "word word word word"+Ellipsis, s)
}
