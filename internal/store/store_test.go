package store

import (
	"context"
	"errors"
	"testing"
)

// storeUnderTest runs the same scenario against every implementation.
func storeUnderTest(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(":memory:")
		if err != nil {
			t.Fatalf("Failed to open store: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
}

func TestDocumentCRUD(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		// 1. Get on an empty store
		_, err := s.Get(ctx, "fam1", "tasks", "t1")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}

		// 2. Set then Get
		if err := s.Set(ctx, "fam1", "tasks", "t1", []byte(`{"title":"math"}`)); err != nil {
			t.Fatalf("Failed to set document: %v", err)
		}
		data, err := s.Get(ctx, "fam1", "tasks", "t1")
		if err != nil {
			t.Fatalf("Failed to get document: %v", err)
		}
		if string(data) != `{"title":"math"}` {
			t.Errorf("Unexpected data: %s", data)
		}

		// 3. Namespaces are isolated
		_, err = s.Get(ctx, "fam2", "tasks", "t1")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound across namespaces, got %v", err)
		}

		// 4. Set replaces
		if err := s.Set(ctx, "fam1", "tasks", "t1", []byte(`{"title":"science"}`)); err != nil {
			t.Fatalf("Failed to replace document: %v", err)
		}
		data, _ = s.Get(ctx, "fam1", "tasks", "t1")
		if string(data) != `{"title":"science"}` {
			t.Errorf("Expected replacement, got %s", data)
		}

		// 5. Delete
		if err := s.Delete(ctx, "fam1", "tasks", "t1"); err != nil {
			t.Fatalf("Failed to delete document: %v", err)
		}
		if err := s.Delete(ctx, "fam1", "tasks", "t1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound on double delete, got %v", err)
		}
	})
}

func TestList(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		records, err := s.List(ctx, "fam1", "sessions")
		if err != nil {
			t.Fatalf("Failed to list empty collection: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("Expected no records, got %d", len(records))
		}

		for _, id := range []string{"c", "a", "b"} {
			if err := s.Set(ctx, "fam1", "sessions", id, []byte(`{}`)); err != nil {
				t.Fatalf("Failed to set %s: %v", id, err)
			}
		}
		if err := s.Set(ctx, "fam1", "tasks", "x", []byte(`{}`)); err != nil {
			t.Fatalf("Failed to set task: %v", err)
		}

		records, err = s.List(ctx, "fam1", "sessions")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("Expected 3 records, got %d", len(records))
		}
		for i, want := range []string{"a", "b", "c"} {
			if records[i].ID != want {
				t.Errorf("Expected record %d to be %s, got %s", i, want, records[i].ID)
			}
		}
	})
}

func TestSubscribe(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if err := s.Set(ctx, "fam1", "active_session", "current", []byte(`{"v":1}`)); err != nil {
			t.Fatalf("Failed to set: %v", err)
		}

		var got [][]byte
		cancel := s.Subscribe("fam1", "active_session", "current", func(data []byte) {
			got = append(got, data)
		})
		defer cancel()

		// Immediate snapshot
		if len(got) != 1 || string(got[0]) != `{"v":1}` {
			t.Fatalf("Expected immediate snapshot, got %v", got)
		}

		// Update fires
		if err := s.Set(ctx, "fam1", "active_session", "current", []byte(`{"v":2}`)); err != nil {
			t.Fatalf("Failed to update: %v", err)
		}
		if len(got) != 2 || string(got[1]) != `{"v":2}` {
			t.Fatalf("Expected update callback, got %v", got)
		}

		// Delete fires with nil
		if err := s.Delete(ctx, "fam1", "active_session", "current"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if len(got) != 3 || got[2] != nil {
			t.Fatalf("Expected nil callback on delete, got %v", got)
		}

		// Cancel stops delivery
		cancel()
		if err := s.Set(ctx, "fam1", "active_session", "current", []byte(`{"v":3}`)); err != nil {
			t.Fatalf("Failed to set after cancel: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("Expected no callback after cancel, got %d", len(got))
		}
	})
}

func TestSubscribeMissingDocument(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, s Store) {
		var calls int
		var last []byte
		cancel := s.Subscribe("fam1", "active_session", "current", func(data []byte) {
			calls++
			last = data
		})
		defer cancel()

		if calls != 1 || last != nil {
			t.Errorf("Expected immediate nil snapshot, calls=%d last=%v", calls, last)
		}
	})
}
