package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemory_GetSetDelete(t *testing.T) {
	t.Parallel()
	c := NewMemory("test", time.Minute)
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	v, err := c.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Fatalf("Get = (%q, %v), want (v, nil)", v, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemory_ConsumeIsSingleUse(t *testing.T) {
	t.Parallel()
	c := NewMemory("", time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "nonce", "abc", time.Minute); err != nil {
		t.Fatalf("Set err: %v", err)
	}

	v, err := c.Consume(ctx, "nonce")
	if err != nil || v != "abc" {
		t.Fatalf("Consume = (%q, %v), want (abc, nil)", v, err)
	}
	if _, err := c.Consume(ctx, "nonce"); !IsNotFound(err) {
		t.Fatalf("second Consume should be ErrNotFound, got %v", err)
	}
}

// Dos goroutines compitiendo por la misma key: exactamente una gana.
func TestMemory_ConsumeConcurrent(t *testing.T) {
	t.Parallel()
	c := NewMemory("", time.Minute)
	ctx := context.Background()

	const rounds = 50
	for i := 0; i < rounds; i++ {
		if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
			t.Fatalf("Set err: %v", err)
		}

		var wg sync.WaitGroup
		wins := make(chan struct{}, 2)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := c.Consume(ctx, "k"); err == nil {
					wins <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(wins)

		var n int
		for range wins {
			n++
		}
		if n != 1 {
			t.Fatalf("round %d: %d winners, want exactly 1", i, n)
		}
	}
}

func TestMemory_TTLExpires(t *testing.T) {
	t.Parallel()
	c := NewMemory("", time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 20*time.Millisecond); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestNew_DefaultsToMemory(t *testing.T) {
	t.Parallel()
	c, err := New(Config{Kind: "memory"})
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping err: %v", err)
	}
}
