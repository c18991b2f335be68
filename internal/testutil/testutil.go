// Package testutil provides shared test helpers for databases and wired services.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/linkgraph"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/search"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notegraph-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestService wires a service over a fresh database. Search caching is
// off unless opts sets a TTL.
func TestService(t *testing.T, opts ...search.Options) (*noteservice.Service, *index.DB) {
	t.Helper()
	db := TestDB(t)
	var so search.Options
	if len(opts) > 0 {
		so = opts[0]
	}
	svc := noteservice.NewService(db,
		linkgraph.New(db, nil),
		search.New(db, so, nil),
		nil,
	)
	return svc, db
}
