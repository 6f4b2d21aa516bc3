package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *MemoryCache {
	t.Helper()
	c := NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// fixedPopulate returns a populate callback that yields id and counts calls.
func fixedPopulate(id int64, calls *atomic.Int64) PopulateFunc {
	return func(context.Context) (int64, bool, error) {
		calls.Add(1)
		return id, true, nil
	}
}

func TestResolve_IdempotentWithinTTL(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	var calls atomic.Int64
	first, ok, err := c.Resolve(ctx, "k", time.Minute, fixedPopulate(42, &calls))
	if err != nil || !ok {
		t.Fatalf("first resolve: id=%d ok=%v err=%v", first, ok, err)
	}

	// Second populate returns a different id; it must not be consulted.
	second, ok, err := c.Resolve(ctx, "k", time.Minute, fixedPopulate(99, &calls))
	if err != nil || !ok {
		t.Fatalf("second resolve: id=%d ok=%v err=%v", second, ok, err)
	}

	if first != 42 || second != 42 {
		t.Errorf("resolves returned %d then %d, want 42 both times", first, second)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("populate called %d times across the pair, want 1", n)
	}
}

func TestResolve_ExpiryRepopulates(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	var calls atomic.Int64
	if _, _, err := c.Resolve(ctx, "k", 50*time.Millisecond, fixedPopulate(1, &calls)); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	time.Sleep(120 * time.Millisecond)

	id, ok, err := c.Resolve(ctx, "k", 50*time.Millisecond, fixedPopulate(2, &calls))
	if err != nil || !ok {
		t.Fatalf("resolve after expiry: ok=%v err=%v", ok, err)
	}
	if id != 2 {
		t.Errorf("resolve after expiry returned %d, want fresh value 2", id)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("populate called %d times, want 2", n)
	}
}

func TestResolve_HitRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	var calls atomic.Int64
	const ttl = 300 * time.Millisecond

	if _, _, err := c.Resolve(ctx, "k", ttl, fixedPopulate(1, &calls)); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// Touch the entry past half its window, then read again past the
	// original deadline. The refresh from the touch must keep it alive.
	time.Sleep(200 * time.Millisecond)
	if _, _, err := c.Resolve(ctx, "k", ttl, fixedPopulate(2, &calls)); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	id, ok, err := c.Resolve(ctx, "k", ttl, fixedPopulate(3, &calls))
	if err != nil || !ok {
		t.Fatalf("resolve failed: ok=%v err=%v", ok, err)
	}
	if id != 1 {
		t.Errorf("resolve returned %d, want original 1 kept alive by refresh", id)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("populate called %d times, want 1", n)
	}
}

func TestResolve_RaceConvergence(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	const n = 32
	var (
		start   sync.WaitGroup
		done    sync.WaitGroup
		results [n]int64
		errs    [n]error
	)
	start.Add(1)
	done.Add(n)

	// Each goroutine populates with a distinct value.
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			id, ok, err := c.Resolve(ctx, "contested", time.Minute, func(context.Context) (int64, bool, error) {
				return int64(i + 1), true, nil
			})
			if err != nil {
				errs[i] = err
				return
			}
			if !ok {
				errs[i] = errors.New("resolve reported no poster")
				return
			}
			results[i] = id
		}(i)
	}
	start.Done()
	done.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
	}

	winner := results[0]
	if winner < 1 || winner > n {
		t.Fatalf("winning value %d is not one of the populate results", winner)
	}
	for i, got := range results {
		if got != winner {
			t.Errorf("goroutine %d got %d, want winner %d", i, got, winner)
		}
	}

	// The stored value is the winner, too.
	id, ok, err := c.Resolve(ctx, "contested", time.Minute, func(context.Context) (int64, bool, error) {
		return -1, true, nil
	})
	if err != nil || !ok {
		t.Fatalf("follow-up resolve failed: ok=%v err=%v", ok, err)
	}
	if id != winner {
		t.Errorf("stored value %d, want winner %d", id, winner)
	}
}

func TestResolve_AbsenceNotCached(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	var calls atomic.Int64
	empty := func(context.Context) (int64, bool, error) {
		calls.Add(1)
		return 0, false, nil
	}

	for i := 0; i < 2; i++ {
		_, ok, err := c.Resolve(ctx, "k", time.Minute, empty)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if ok {
			t.Fatal("resolve reported a poster from an empty populate")
		}
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("populate called %d times, want 2 (absence must not be cached)", n)
	}

	// Once a poster appears, the same key caches it.
	var fresh atomic.Int64
	id, ok, err := c.Resolve(ctx, "k", time.Minute, fixedPopulate(7, &fresh))
	if err != nil || !ok || id != 7 {
		t.Fatalf("resolve after poster appears: id=%d ok=%v err=%v", id, ok, err)
	}
}

func TestResolve_PopulateErrorLeavesNoEntry(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	storeDown := errors.New("connection refused")
	_, _, err := c.Resolve(ctx, "k", time.Minute, func(context.Context) (int64, bool, error) {
		return 0, false, storeDown
	})
	if !errors.Is(err, storeDown) {
		t.Fatalf("resolve error = %v, want wrapped store error", err)
	}
	if c.size() != 0 {
		t.Error("failed populate left a cache entry behind")
	}

	// A healthy retry succeeds.
	var calls atomic.Int64
	id, ok, err := c.Resolve(ctx, "k", time.Minute, fixedPopulate(9, &calls))
	if err != nil || !ok || id != 9 {
		t.Errorf("retry after failure: id=%d ok=%v err=%v", id, ok, err)
	}
}

func TestResolve_DistinctKeysIndependent(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	var calls atomic.Int64
	a, _, err := c.Resolve(ctx, "a", time.Minute, fixedPopulate(1, &calls))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	b, _, err := c.Resolve(ctx, "b", time.Minute, fixedPopulate(2, &calls))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if a != 1 || b != 2 {
		t.Errorf("resolves returned %d and %d, want 1 and 2", a, b)
	}
}

func TestCleanup_ReclaimsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	var calls atomic.Int64
	if _, _, err := c.Resolve(ctx, "k", 10*time.Millisecond, fixedPopulate(1, &calls)); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	c.cleanup()
	if c.size() != 0 {
		t.Errorf("cleanup left %d entries, want 0", c.size())
	}
}
