package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/stevemurr/docsource/store"
)

// runStoreTests runs a common test suite against any Store implementation.
func runStoreTests(t *testing.T, s store.Store) {
	t.Helper()

	t.Run("ListDBs empty", func(t *testing.T) {
		names, err := s.ListDBs()
		if err != nil {
			t.Fatal(err)
		}
		if len(names) != 0 {
			t.Fatalf("expected no databases, got %v", names)
		}
	})

	t.Run("CreateDB", func(t *testing.T) {
		if err := s.CreateDB("col1"); err != nil {
			t.Fatal(err)
		}
		if err := s.CreateDB("col1"); !errors.Is(err, store.ErrDBExists) {
			t.Fatalf("expected ErrDBExists, got %v", err)
		}
		if err := s.CreateDB("Bad Name"); !errors.Is(err, store.ErrBadName) {
			t.Fatalf("expected ErrBadName, got %v", err)
		}
	})

	var rev1 string

	t.Run("Put and Get", func(t *testing.T) {
		doc, err := s.Put("col1", "k1", "", map[string]any{"title": "hello", "count": 42})
		if err != nil {
			t.Fatal(err)
		}
		if store.Generation(doc.Rev) != 1 {
			t.Fatalf("expected generation 1, got %q", doc.Rev)
		}
		rev1 = doc.Rev
		got, err := s.Get("col1", "k1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Rev != rev1 {
			t.Fatalf("expected rev %q, got %q", rev1, got.Rev)
		}
		if got.Fields["title"] != "hello" {
			t.Fatalf("expected title=hello, got %v", got.Fields["title"])
		}
		if got.Fields["count"] != json.Number("42") {
			t.Fatalf("expected count=42, got %#v", got.Fields["count"])
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		if _, err := s.Get("col1", "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.Get("nodb", "k1"); !errors.Is(err, store.ErrNoDB) {
			t.Fatalf("expected ErrNoDB, got %v", err)
		}
	})

	t.Run("Put without rev conflicts", func(t *testing.T) {
		if _, err := s.Put("col1", "k1", "", map[string]any{"title": "x"}); !errors.Is(err, store.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if _, err := s.Put("col1", "k1", "9-stale", map[string]any{"title": "x"}); !errors.Is(err, store.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	var rev2 string

	t.Run("Put with current rev", func(t *testing.T) {
		doc, err := s.Put("col1", "k1", rev1, map[string]any{"title": "updated"})
		if err != nil {
			t.Fatal(err)
		}
		if store.Generation(doc.Rev) != 2 {
			t.Fatalf("expected generation 2, got %q", doc.Rev)
		}
		rev2 = doc.Rev
		got, err := s.Get("col1", "k1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Fields["title"] != "updated" {
			t.Fatalf("expected title=updated, got %v", got.Fields["title"])
		}
		if _, ok := got.Fields["count"]; ok {
			t.Fatal("expected count to be replaced away")
		}
	})

	t.Run("AllDocs", func(t *testing.T) {
		if _, err := s.Put("col1", "k0", "", map[string]any{"title": "first"}); err != nil {
			t.Fatal(err)
		}
		docs, err := s.AllDocs("col1")
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 2 {
			t.Fatalf("expected 2 docs, got %d", len(docs))
		}
		if docs[0].ID != "k0" || docs[1].ID != "k1" {
			t.Fatalf("expected sorted ids, got %s, %s", docs[0].ID, docs[1].ID)
		}
	})

	t.Run("Remove with stale rev", func(t *testing.T) {
		if _, err := s.Remove("col1", "k1", rev1); !errors.Is(err, store.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	var tombstone string

	t.Run("Remove leaves tombstone", func(t *testing.T) {
		doc, err := s.Remove("col1", "k1", rev2)
		if err != nil {
			t.Fatal(err)
		}
		if !doc.Deleted || store.Generation(doc.Rev) != 3 {
			t.Fatalf("expected deleted generation 3, got %+v", doc)
		}
		tombstone = doc.Rev
		got, err := s.Get("col1", "k1")
		if err != nil {
			t.Fatal(err)
		}
		if !got.Deleted {
			t.Fatal("expected tombstone")
		}
		if _, err := s.Remove("col1", "k1", tombstone); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound removing twice, got %v", err)
		}
		docs, err := s.AllDocs("col1")
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 1 {
			t.Fatalf("expected 1 live doc, got %d", len(docs))
		}
	})

	t.Run("Info", func(t *testing.T) {
		info, err := s.Info("col1")
		if err != nil {
			t.Fatal(err)
		}
		if info.Name != "col1" || info.DocCount != 1 || info.DelCount != 1 {
			t.Fatalf("unexpected info %+v", info)
		}
		if info.UpdateSeq != 4 {
			t.Fatalf("expected update_seq 4, got %d", info.UpdateSeq)
		}
	})

	t.Run("Put recreates deleted", func(t *testing.T) {
		doc, err := s.Put("col1", "k1", "", map[string]any{"title": "again"})
		if err != nil {
			t.Fatal(err)
		}
		if doc.Deleted || store.Generation(doc.Rev) != 4 {
			t.Fatalf("expected live generation 4, got %+v", doc)
		}
	})

	t.Run("ListDBs", func(t *testing.T) {
		if err := s.CreateDB("col2"); err != nil {
			t.Fatal(err)
		}
		names, err := s.ListDBs()
		if err != nil {
			t.Fatal(err)
		}
		if len(names) != 2 || names[0] != "col1" || names[1] != "col2" {
			t.Fatalf("expected [col1 col2], got %v", names)
		}
	})

	t.Run("DeleteDB", func(t *testing.T) {
		if err := s.DeleteDB("col2"); err != nil {
			t.Fatal(err)
		}
		if err := s.DeleteDB("col2"); !errors.Is(err, store.ErrNoDB) {
			t.Fatalf("expected ErrNoDB, got %v", err)
		}
		if _, err := s.Put("col2", "k1", "", map[string]any{}); !errors.Is(err, store.ErrNoDB) {
			t.Fatalf("expected ErrNoDB, got %v", err)
		}
	})

	t.Run("concurrent writers", func(t *testing.T) {
		if err := s.CreateDB("race"); err != nil {
			t.Fatal(err)
		}
		doc, err := s.Put("race", "r", "", map[string]any{"n": 0})
		if err != nil {
			t.Fatal(err)
		}
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			ok        int
			conflicts int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.Put("race", "r", doc.Rev, map[string]any{"n": i})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, store.ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		if ok != 1 || conflicts != 7 {
			t.Fatalf("expected 1 winner and 7 conflicts, got %d and %d", ok, conflicts)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	s := store.NewMemoryStore()
	runStoreTests(t, s)
}

func TestJsonFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewJsonFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	runStoreTests(t, s)
}

func TestSqliteStore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := store.NewSqliteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runStoreTests(t, s)
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
	}{
		{"json"},
		{"sqlite"},
		{"memory"},
		{""},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			s, err := store.New(tc.backend, filepath.Join(dir, tc.backend))
			if err != nil {
				t.Fatal(err)
			}
			if err := s.CreateDB("probe"); err != nil {
				t.Fatal(err)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := store.New("redis", dir)
		if err == nil {
			t.Fatal("expected error for unknown backend")
		}
	})
}

func TestJsonFileStoreIsolation(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewJsonFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a", "b"} {
		if err := s.CreateDB(name); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := s.Put("a", "k1", "", map[string]any{"x": 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put("b", "k1", "", map[string]any{"x": 2}); err != nil {
		t.Fatal(err)
	}

	aDoc, _ := s.Get("a", "k1")
	bDoc, _ := s.Get("b", "k1")

	if aDoc.Fields["x"] != json.Number("1") {
		t.Fatalf("database a: expected x=1, got %v", aDoc.Fields["x"])
	}
	if bDoc.Fields["x"] != json.Number("2") {
		t.Fatalf("database b: expected x=2, got %v", bDoc.Fields["x"])
	}

	if _, err := os.Stat(filepath.Join(dir, "a.json")); err != nil {
		t.Fatalf("expected a.json to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.json")); err != nil {
		t.Fatalf("expected b.json to exist: %v", err)
	}
}

func TestRevisionsDiffer(t *testing.T) {
	s := store.NewMemoryStore()
	if err := s.CreateDB("revs"); err != nil {
		t.Fatal(err)
	}
	a, _ := s.Put("revs", "a", "", map[string]any{"v": 1})
	b, _ := s.Put("revs", "b", "", map[string]any{"v": 2})
	if a.Rev == b.Rev {
		t.Fatalf("expected different revisions for different bodies, got %q", a.Rev)
	}
	a2, err := s.Put("revs", "a", a.Rev, map[string]any{"v": 1})
	if err != nil {
		t.Fatal(err)
	}
	if a2.Rev == a.Rev {
		t.Fatal("expected a new revision for an identical body")
	}
}
