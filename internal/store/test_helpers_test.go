package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/model"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seededStore loads a small posts/tags dataset.
func seededStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	require.NoError(t, s.Load(context.Background(), map[string][]model.Record{
		"posts": {
			{"id": 1, "title": "Go caching", "status": "published", "views": 10, "author": map[string]any{"name": "ann"}},
			{"id": 2, "title": "Admin tips", "status": "draft", "views": 3},
			{"id": 3, "title": "Go generics", "status": "published", "views": 25},
			{"id": 10, "title": "Release notes", "status": "published", "views": 10},
		},
		"tags": {
			{"id": "a", "name": "go"},
			{"id": "b", "name": "cache"},
		},
	}))
	return s
}

func titles(records []model.Record) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i], _ = rec["title"].(string)
	}
	return out
}
