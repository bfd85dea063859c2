package tiered_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/foodshare/internal/adapter/tiered"
)

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	readErr error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, false, m.readErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func TestTiered_L1Hit(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)

	l1.data["leaderboard:Restaurant"] = []byte("l1")

	val, found, err := c.Get(context.Background(), "leaderboard:Restaurant")
	if err != nil || !found || string(val) != "l1" {
		t.Fatalf("Get = %q, %v, %v", val, found, err)
	}
}

func TestTiered_L2HitBackfillsL1(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)

	l2.data["leaderboard:Individual"] = []byte("l2")

	val, found, err := c.Get(context.Background(), "leaderboard:Individual")
	if err != nil || !found || string(val) != "l2" {
		t.Fatalf("Get = %q, %v, %v", val, found, err)
	}
	if !l1.has("leaderboard:Individual") {
		t.Fatal("expected L1 backfill")
	}
}

func TestTiered_SetAndDeleteTouchBothLevels(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if !l1.has("k") || !l2.has("k") {
		t.Fatal("expected key in both levels")
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if l1.has("k") || l2.has("k") {
		t.Fatal("expected key removed from both levels")
	}
}

func TestTiered_GetOrLoadCachesResult(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]byte, error) {
		calls++
		return []byte("fresh"), nil
	}

	for range 3 {
		val, err := c.GetOrLoad(ctx, "k", time.Minute, load)
		if err != nil {
			t.Fatal(err)
		}
		if string(val) != "fresh" {
			t.Fatalf("expected fresh, got %s", val)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single load, got %d", calls)
	}
	if !l2.has("k") {
		t.Fatal("expected loaded value written to L2")
	}
}

func TestTiered_GetOrLoadReturnsLoadError(t *testing.T) {
	c := tiered.New(newMemCache(), newMemCache(), time.Minute)
	wantErr := errors.New("db down")

	_, err := c.GetOrLoad(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestTiered_GetOrLoadSurvivesCacheReadError(t *testing.T) {
	l1 := newMemCache()
	l1.readErr = errors.New("l1 broken")
	c := tiered.New(l1, newMemCache(), time.Minute)

	val, err := c.GetOrLoad(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("from-db"), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(val) != "from-db" {
		t.Fatalf("expected from-db, got %s", val)
	}
}

func TestTiered_GetOrLoadCollapsesConcurrentMisses(t *testing.T) {
	c := tiered.New(newMemCache(), newMemCache(), time.Minute)

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrLoad(context.Background(), "hot", time.Minute, load); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("expected 1 load for concurrent misses, got %d", n)
	}
}
