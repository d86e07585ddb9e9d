package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mdpress/presto/internal/blob"
)

// mockStore implements the durable-tier consumer interface.
type mockStore struct {
	existsFn func(ctx context.Context, key string) (bool, error)
	getFn    func(ctx context.Context, key string) ([]byte, error)
	putFn    func(ctx context.Context, key string, value []byte) error

	gets int
	puts int
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.gets++
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, blob.ErrKeyNotFound
}

func (m *mockStore) Put(ctx context.Context, key string, value []byte) error {
	m.puts++
	if m.putFn != nil {
		return m.putFn(ctx, key, value)
	}
	return nil
}

func newCache(ms *mockStore, maxEntries int, ttl time.Duration) *TwoTier {
	return New(ms, maxEntries, ttl, nil, nil)
}

func TestGet_ReadThroughPopulatesFastTier(t *testing.T) {
	ms := &mockStore{
		getFn: func(_ context.Context, _ string) ([]byte, error) {
			return []byte("doc"), nil
		},
	}
	c := newCache(ms, 10, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		data, err := c.Get(ctx, "fp")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "doc" {
			t.Fatalf("got %q, want %q", data, "doc")
		}
	}
	if ms.gets != 1 {
		t.Fatalf("durable Get called %d times, want 1", ms.gets)
	}
}

func TestGet_AbsentInBothTiers(t *testing.T) {
	c := newCache(&mockStore{}, 10, time.Hour)

	_, err := c.Get(context.Background(), "fp")
	if !errors.Is(err, blob.ErrKeyNotFound) {
		t.Fatalf("got %v, want ErrKeyNotFound", err)
	}
}

func TestGet_DurableErrorDegradesToMiss(t *testing.T) {
	ms := &mockStore{
		getFn: func(_ context.Context, _ string) ([]byte, error) {
			return nil, errors.New("connection refused")
		},
	}
	c := newCache(ms, 10, time.Hour)

	_, err := c.Get(context.Background(), "fp")
	if !errors.Is(err, blob.ErrKeyNotFound) {
		t.Fatalf("got %v, want ErrKeyNotFound", err)
	}
}

func TestPut_WriteThroughThenFastTier(t *testing.T) {
	ms := &mockStore{}
	c := newCache(ms, 10, time.Hour)
	ctx := context.Background()

	if err := c.Put(ctx, "fp", []byte("doc")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.puts != 1 {
		t.Fatalf("durable Put called %d times, want 1", ms.puts)
	}

	// Fast tier should serve the value with no durable read.
	data, err := c.Get(ctx, "fp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "doc" || ms.gets != 0 {
		t.Fatalf("fast tier not populated: data=%q gets=%d", data, ms.gets)
	}
}

func TestPut_DurableFailurePropagatesAndSkipsFastTier(t *testing.T) {
	ms := &mockStore{
		putFn: func(_ context.Context, _ string, _ []byte) error {
			return errors.New("bucket gone")
		},
	}
	c := newCache(ms, 10, time.Hour)
	ctx := context.Background()

	if err := c.Put(ctx, "fp", []byte("doc")); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.Get(ctx, "fp"); !errors.Is(err, blob.ErrKeyNotFound) {
		t.Fatal("fast tier must not hold a value the durable tier rejected")
	}
}

func TestExists_ChecksDurableOnly(t *testing.T) {
	var asked string
	ms := &mockStore{
		existsFn: func(_ context.Context, key string) (bool, error) {
			asked = key
			return true, nil
		},
	}
	c := newCache(ms, 10, time.Hour)

	ok, err := c.Exists(context.Background(), "fp.tif")
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
	if asked != "fp.tif" {
		t.Fatalf("asked durable for %q, want fp.tif", asked)
	}
}

func TestInvalidate_FastTierOnly(t *testing.T) {
	ms := &mockStore{
		getFn: func(_ context.Context, _ string) ([]byte, error) {
			return []byte("doc"), nil
		},
	}
	c := newCache(ms, 10, time.Hour)
	ctx := context.Background()

	if _, err := c.Get(ctx, "fp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Invalidate("fp")

	if _, err := c.Get(ctx, "fp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.gets != 2 {
		t.Fatalf("durable Get called %d times, want 2 after invalidate", ms.gets)
	}
}

func TestFastTier_TTLExpiry(t *testing.T) {
	ms := &mockStore{
		getFn: func(_ context.Context, _ string) ([]byte, error) {
			return []byte("doc"), nil
		},
	}
	c := newCache(ms, 10, time.Minute)
	clock := time.Unix(1000, 0)
	c.now = func() time.Time { return clock }
	ctx := context.Background()

	if _, err := c.Get(ctx, "fp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if _, err := c.Get(ctx, "fp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.gets != 2 {
		t.Fatalf("durable Get called %d times, want 2 after TTL expiry", ms.gets)
	}
}

func TestFastTier_CountBound(t *testing.T) {
	ms := &mockStore{}
	c := newCache(ms, 2, time.Hour)
	clock := time.Unix(1000, 0)
	c.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := c.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("fast tier holds %d entries, want 2", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	ms := &mockStore{
		getFn: func(_ context.Context, key string) ([]byte, error) {
			return []byte(key), nil
		},
	}
	c := newCache(ms, 4, time.Hour)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			keys := []string{"a", "b", "c", "d", "e"}
			for j := 0; j < 50; j++ {
				key := keys[(n+j)%len(keys)]
				_, _ = c.Get(ctx, key)
				_ = c.Put(ctx, key, []byte(key))
				c.Invalidate(key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
