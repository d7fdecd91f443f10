package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/postgram/postgram/internal/gate"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "gate.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateIfAbsent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := gate.Record{PostID: "42", PublishedBefore: true, LastKnownStatus: "publish"}

	created, err := s.CreateIfAbsent(ctx, rec)
	if err != nil {
		t.Fatalf("CreateIfAbsent() error: %v", err)
	}
	if !created {
		t.Fatal("CreateIfAbsent() = false on first call, want true")
	}

	created, err = s.CreateIfAbsent(ctx, rec)
	if err != nil {
		t.Fatalf("CreateIfAbsent() error: %v", err)
	}
	if created {
		t.Error("CreateIfAbsent() = true on second call, want false")
	}
}

func TestGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v for absent record, want nil", got)
	}

	if _, err := s.CreateIfAbsent(ctx, gate.Record{
		PostID:          "7",
		PublishedBefore: true,
		LastKnownStatus: "publish",
	}); err != nil {
		t.Fatalf("CreateIfAbsent() error: %v", err)
	}

	got, err = s.Get(ctx, "7")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil, want record")
	}
	if !got.PublishedBefore {
		t.Error("PublishedBefore = false, want true")
	}
	if got.LastKnownStatus != "publish" {
		t.Errorf("LastKnownStatus = %q, want %q", got.LastKnownStatus, "publish")
	}
}

func TestCreateIfAbsentConcurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const workers = 8
	results := make(chan bool, workers)
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.CreateIfAbsent(ctx, gate.Record{
				PostID:          "contended",
				PublishedBefore: true,
				LastKnownStatus: "publish",
			})
			if err != nil {
				t.Errorf("CreateIfAbsent() error: %v", err)
				return
			}
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for created := range results {
		if created {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("got %d winners, want exactly 1", wins)
	}
}
