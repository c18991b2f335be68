package linkgraph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
)

// memStore is an in-memory Store that counts ApplyLinkDiff calls.
type memStore struct {
	titles  map[string]int64
	content map[int64]string
	edges   map[int64]map[int64]bool
	applies int
	failAt  int
}

func newMemStore(titles ...string) *memStore {
	s := &memStore{
		titles:  map[string]int64{},
		content: map[int64]string{},
		edges:   map[int64]map[int64]bool{},
	}
	for i, t := range titles {
		s.titles[t] = int64(i + 1)
		s.content[int64(i+1)] = ""
	}
	return s
}

func (s *memStore) ResolveTitles(_ context.Context, titles []string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, t := range titles {
		if id, ok := s.titles[t]; ok {
			out[t] = id
		}
	}
	return out, nil
}

func (s *memStore) OutgoingLinks(_ context.Context, id int64) ([]models.Link, error) {
	var out []models.Link
	for target := range s.edges[id] {
		out = append(out, models.Link{SourceNoteID: id, TargetNoteID: target})
	}
	return out, nil
}

func (s *memStore) ApplyLinkDiff(_ context.Context, source int64, remove, add []int64) (int, int, error) {
	s.applies++
	if s.failAt > 0 && s.applies == s.failAt {
		return 0, 0, errors.New("disk on fire")
	}
	if s.edges[source] == nil {
		s.edges[source] = map[int64]bool{}
	}
	var created, removed int
	for _, id := range remove {
		if s.edges[source][id] {
			delete(s.edges[source], id)
			removed++
		}
	}
	for _, id := range add {
		if id != source && !s.edges[source][id] {
			s.edges[source][id] = true
			created++
		}
	}
	return created, removed, nil
}

func (s *memStore) ListNotes(_ context.Context) ([]models.Note, error) {
	var out []models.Note
	for title, id := range s.titles {
		out = append(out, models.Note{ID: id, Title: title, Content: s.content[id]})
	}
	slices.SortFunc(out, func(a, b models.Note) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *memStore) targets(id int64) []int64 {
	var out []int64
	for t := range s.edges[id] {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func TestSync_DiffCorrectness(t *testing.T) {
	ctx := context.Background()
	store := newMemStore("N", "X", "Y", "Z")
	s := New(store, nil)

	_, err := s.Sync(ctx, 1, "[[X]] [[Y]]")
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3}, store.targets(1))

	res, err := s.Sync(ctx, 1, "[[Y]] [[Z]]")
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1, Removed: 1}, res)
	assert.Equal(t, []int64{3, 4}, store.targets(1))
}

func TestSync_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore("N", "A", "B")
	s := New(store, nil)

	_, err := s.Sync(ctx, 1, "[[A]] and [[B]]")
	require.NoError(t, err)
	applies := store.applies

	res, err := s.Sync(ctx, 1, "[[A]] and [[B]]")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Equal(t, applies, store.applies, "second sync must not write")
}

func TestSync_SelfAndDangling(t *testing.T) {
	ctx := context.Background()
	store := newMemStore("N", "A")
	s := New(store, nil)

	d, err := s.Plan(ctx, 1, "[[N]] [[A]] [[Nowhere]]")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, d.Wanted)
	assert.Equal(t, []string{"Nowhere"}, d.Unresolved)

	_, err = s.Sync(ctx, 1, "[[N]] [[A]] [[Nowhere]]")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, store.targets(1))
}

func TestSync_NoLinksNoWrites(t *testing.T) {
	store := newMemStore("N")
	res, err := New(store, nil).Sync(context.Background(), 1, "plain text")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Zero(t, store.applies)
}

func TestSync_StoreFailure(t *testing.T) {
	store := newMemStore("N", "A")
	store.failAt = 1
	_, err := New(store, nil).Sync(context.Background(), 1, "[[A]]")
	require.Error(t, err)
	assert.Empty(t, store.targets(1))
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store := newMemStore("A", "B", "C")
	store.content[1] = "[[B]] [[C]]"
	store.content[2] = "[[A]]"
	store.edges[3] = map[int64]bool{1: true}

	stats, err := New(store, nil).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{Notes: 3, Changed: 3, Created: 3, Removed: 1}, stats)
	assert.Equal(t, []int64{2, 3}, store.targets(1))
	assert.Equal(t, []int64{1}, store.targets(2))
	assert.Empty(t, store.targets(3))

	stats, err = New(store, nil).Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Changed)
}

func TestSyncProperties(t *testing.T) {
	universe := []string{"N0", "N1", "N2", "N3", "N4", "N5"}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// refs index into universe; values past its end are dangling titles.
	content := func(refs []int) string {
		var b strings.Builder
		for _, r := range refs {
			if r < len(universe) {
				fmt.Fprintf(&b, "see [[%s]] ", universe[r])
			} else {
				fmt.Fprintf(&b, "see [[ghost %d]] ", r)
			}
		}
		return b.String()
	}
	want := func(source int64, refs []int) []int64 {
		set := map[int64]bool{}
		for _, r := range refs {
			if r < len(universe) && int64(r+1) != source {
				set[int64(r+1)] = true
			}
		}
		out := []int64{}
		for id := range set {
			out = append(out, id)
		}
		slices.Sort(out)
		return out
	}
	refsGen := gen.SliceOf(gen.IntRange(0, len(universe)+2))

	properties.Property("outgoing edges equal resolved links minus self", prop.ForAll(
		func(before, after []int, source int) bool {
			store := newMemStore(universe...)
			s := New(store, nil)
			src := int64(source)
			if _, err := s.Sync(context.Background(), src, content(before)); err != nil {
				return false
			}
			if _, err := s.Sync(context.Background(), src, content(after)); err != nil {
				return false
			}
			got := store.targets(src)
			if got == nil {
				got = []int64{}
			}
			return slices.Equal(got, want(src, after))
		},
		refsGen, refsGen, gen.IntRange(1, len(universe)),
	))

	properties.Property("second sync with same content writes nothing", prop.ForAll(
		func(before, refs []int) bool {
			store := newMemStore(universe...)
			s := New(store, nil)
			ctx := context.Background()
			if _, err := s.Sync(ctx, 1, content(before)); err != nil {
				return false
			}
			if _, err := s.Sync(ctx, 1, content(refs)); err != nil {
				return false
			}
			applies := store.applies
			res, err := s.Sync(ctx, 1, content(refs))
			return err == nil && res == Result{} && store.applies == applies
		},
		refsGen, refsGen,
	))

	properties.TestingRun(t)
}

func testDB(t *testing.T) *index.DB {
	t.Helper()
	f, err := os.CreateTemp("", "notegraph-linkgraph-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := index.Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSync_SQLite(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	s := New(db, nil)

	n, err := db.CreateNote(ctx, "N", "")
	require.NoError(t, err)
	x, err := db.CreateNote(ctx, "X", "")
	require.NoError(t, err)
	y, err := db.CreateNote(ctx, "Y", "")
	require.NoError(t, err)
	z, err := db.CreateNote(ctx, "Z", "")
	require.NoError(t, err)

	_, err = s.Sync(ctx, n.ID, "[[X]] [[Y]] [[N]]")
	require.NoError(t, err)
	res, err := s.Sync(ctx, n.ID, "[[Y]] [[Z]] [[Missing]]")
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1, Removed: 1}, res)

	notes, err := db.OutgoingNotes(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, y.ID, notes[0].ID)
	assert.Equal(t, z.ID, notes[1].ID)

	exists, err := db.LinkExists(ctx, n.ID, x.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	res, err = s.Sync(ctx, n.ID, "[[Y]] [[Z]] [[Missing]]")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestSync_SQLiteDeletedSource(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	n, err := db.CreateNote(ctx, "N", "")
	require.NoError(t, err)
	_, err = db.CreateNote(ctx, "A", "")
	require.NoError(t, err)
	_, err = db.SoftDeleteNote(ctx, n.ID)
	require.NoError(t, err)

	_, err = New(db, nil).Sync(ctx, n.ID, "[[A]]")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
