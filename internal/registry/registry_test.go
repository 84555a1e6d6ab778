package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"turtled/internal/turtleerr"
)

func TestRegisterGetUnregister(t *testing.T) {
	r := New()
	id := uuid.New()
	entry := &Entry{ID: id}

	if err := r.Register(entry); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	got, ok := r.Get(id)
	if !ok || got != entry {
		t.Fatalf("Get(%v) = %v, %v, want entry, true", id, got, ok)
	}

	r.Unregister(id)
	if _, ok := r.Get(id); ok {
		t.Error("entry still present after Unregister")
	}
}

func TestRegisterRefusesDuplicateIdentity(t *testing.T) {
	r := New()
	id := uuid.New()
	if err := r.Register(&Entry{ID: id}); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	err := r.Register(&Entry{ID: id})
	if !errors.Is(err, turtleerr.ErrAlreadyConnected) {
		t.Fatalf("second Register error = %v, want ErrAlreadyConnected", err)
	}
}

// TestOneSessionPerIdentityConcurrent is property 7: when many concurrent
// negotiations resolve the same UUID, exactly one registration succeeds.
func TestOneSessionPerIdentityConcurrent(t *testing.T) {
	r := New()
	id := uuid.New()

	const attempts = 50
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Register(&Entry{ID: id})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, turtleerr.ErrAlreadyConnected) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
}

func TestListSnapshotsAllEntries(t *testing.T) {
	r := New()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		if err := r.Register(&Entry{ID: id}); err != nil {
			t.Fatalf("Register error: %v", err)
		}
	}
	list := r.List()
	if len(list) != len(ids) {
		t.Fatalf("List() len = %d, want %d", len(list), len(ids))
	}
}
