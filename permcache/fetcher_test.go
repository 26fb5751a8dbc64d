package permcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchReturnsSourceResult(t *testing.T) {
	f := New(8, time.Minute)

	perms, err := f.Fetch(context.Background(), "u1", func(ctx context.Context, id string) ([]string, error) {
		return []string{"doc.read", "doc.write"}, nil
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(perms) != 2 || perms[0] != "doc.read" || perms[1] != "doc.write" {
		t.Fatalf("unexpected permissions: %v", perms)
	}
}

func TestConcurrentFetchesShareOneCall(t *testing.T) {
	f := New(8, time.Minute)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, id string) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"doc.read"}, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([][]string, workers)
	errs := make([]error, workers)

	started := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			results[i], errs[i] = f.Fetch(context.Background(), "u1", fetch)
		}(i)
	}
	for i := 0; i < workers; i++ {
		<-started
	}
	time.Sleep(10 * time.Millisecond) // let everyone reach the flight
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one source call, got %d", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if len(results[i]) != 1 || results[i][0] != "doc.read" {
			t.Fatalf("worker %d got %v", i, results[i])
		}
	}
}

func TestFailureIsNotCached(t *testing.T) {
	f := New(8, time.Minute)

	boom := errors.New("source down")
	calls := 0
	fetch := func(ctx context.Context, id string) ([]string, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return []string{"doc.read"}, nil
	}

	if _, err := f.Fetch(context.Background(), "u1", fetch); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}

	perms, err := f.Fetch(context.Background(), "u1", fetch)
	if err != nil {
		t.Fatalf("retry after failure must hit the source: %v", err)
	}
	if len(perms) != 1 {
		t.Fatalf("unexpected permissions: %v", perms)
	}
	if calls != 2 {
		t.Fatalf("expected 2 source calls, got %d", calls)
	}
}

func TestSuccessIsCached(t *testing.T) {
	f := New(8, time.Minute)

	calls := 0
	fetch := func(ctx context.Context, id string) ([]string, error) {
		calls++
		return []string{"doc.read"}, nil
	}

	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), "u1", fetch); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 source call for repeated fetches, got %d", calls)
	}
}

func TestResultsAreIsolated(t *testing.T) {
	f := New(8, time.Minute)

	fetch := func(ctx context.Context, id string) ([]string, error) {
		return []string{"doc.read"}, nil
	}

	first, err := f.Fetch(context.Background(), "u1", fetch)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	first[0] = "mutated"

	second, err := f.Fetch(context.Background(), "u1", fetch)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if second[0] != "doc.read" {
		t.Fatal("mutating a returned slice must not corrupt the cache")
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	f := New(8, time.Minute)

	calls := 0
	fetch := func(ctx context.Context, id string) ([]string, error) {
		calls++
		return []string{"doc.read"}, nil
	}

	if _, err := f.Fetch(context.Background(), "u1", fetch); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	f.Invalidate("u1")
	if _, err := f.Fetch(context.Background(), "u1", fetch); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected refetch after Invalidate, got %d calls", calls)
	}
}

func TestPurgeDropsEverything(t *testing.T) {
	f := New(8, time.Minute)

	fetch := func(ctx context.Context, id string) ([]string, error) {
		return []string{"x"}, nil
	}
	for _, id := range []string{"u1", "u2"} {
		if _, err := f.Fetch(context.Background(), id, fetch); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
	}
	if f.Len() != 2 {
		t.Fatalf("expected 2 cached results, got %d", f.Len())
	}

	f.Purge()
	if f.Len() != 0 {
		t.Fatalf("expected empty cache after Purge, got %d", f.Len())
	}
}

func TestNilResultBecomesEmptySet(t *testing.T) {
	f := New(8, time.Minute)

	perms, err := f.Fetch(context.Background(), "u1", func(ctx context.Context, id string) ([]string, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if perms == nil || len(perms) != 0 {
		t.Fatalf("expected empty non-nil set, got %v", perms)
	}
}
