package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lendhand/lendhand/internal/geo"
)

// baseTime keeps test timestamps deterministic.
var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// openTest opens a store in a temp dir and closes it on cleanup.
func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testUser(id, name, locality string) User {
	return User{
		ID:           id,
		DisplayName:  name,
		Locality:     locality,
		LocalityNorm: locality,
		CreatedAt:    baseTime,
	}
}

func testRequest(id, title, ownerID string) Request {
	return Request{
		ID:        id,
		Title:     title,
		Category:  CategoryOther,
		OwnerID:   ownerID,
		OwnerName: "Poster",
		Status:    StatusOpen,
		Location: &geo.Location{
			Point:   geo.Point{Latitude: 40.0, Longitude: -75.0},
			Address: "Main Hall, University Park",
		},
		CreatedAt: baseTime,
	}
}

// drain collects everything currently queued on a watcher.
func drain(w *Watcher) []Change {
	var out []Change
	for {
		c, ok := w.TryNext()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}
