package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/yndnr/boxstore-go/internal/storage"
)

func TestBackend_GetSetDelete(t *testing.T) {
	b := New()
	ctx := context.Background()

	if _, err := b.Get(ctx, "k"); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Fatalf("Get missing = %v, want ErrKeyNotFound", err)
	}

	if err := b.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := b.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	// Returned slices are copies.
	got[0] = 'x'
	again, _ := b.Get(ctx, "k")
	if string(again) != "v" {
		t.Fatalf("stored value mutated through returned slice: %q", again)
	}

	ok, _ := b.Exists(ctx, "k")
	if !ok {
		t.Fatal("Exists = false after Set")
	}

	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, _ = b.Exists(ctx, "k")
	if ok {
		t.Fatal("Exists = true after Delete")
	}
}

func TestBackend_SwapDistinguishesEmptyFromAbsent(t *testing.T) {
	b := New()
	ctx := context.Background()

	prev, err := b.Swap(ctx, "k", []byte{})
	if err != nil || prev != nil {
		t.Fatalf("Swap on absent = %#v, %v; want nil", prev, err)
	}

	prev, err = b.Swap(ctx, "k", []byte{})
	if err != nil {
		t.Fatal(err)
	}
	if prev == nil || len(prev) != 0 {
		t.Fatalf("Swap on empty = %#v; want non-nil empty", prev)
	}

	if err := b.Set(ctx, "n", nil); err != nil {
		t.Fatal(err)
	}
	v, err := b.Get(ctx, "n")
	if err != nil || v == nil {
		t.Fatalf("Get after Set(nil) = %#v, %v; want empty value", v, err)
	}
}

func TestBackend_Scan(t *testing.T) {
	b := New(WithShards(4))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = b.Set(ctx, fmt.Sprintf("ses_bot1-%d", i), []byte("x"))
	}
	_ = b.Set(ctx, "ses_bot10-0", []byte("x"))
	_ = b.Set(ctx, "id_bot1", []byte("x"))

	var keys []string
	if err := b.Scan(ctx, "ses_bot1-", func(k string) bool {
		keys = append(keys, k)
		return true
	}); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 5 || keys[0] != "ses_bot1-0" || keys[4] != "ses_bot1-4" {
		t.Fatalf("Scan keys = %v", keys)
	}

	if b.Len() != 7 {
		t.Fatalf("Len = %d, want 7", b.Len())
	}
}

func TestBackend_ConcurrentSwap(t *testing.T) {
	b := New()
	ctx := context.Background()
	_ = b.Set(ctx, "k", []byte("v"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev, _ := b.Swap(ctx, "k", []byte{})
			if len(prev) > 0 {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners = %d, want 1", winners)
	}
}

func TestBackend_Closed(t *testing.T) {
	b := New()
	ctx := context.Background()
	_ = b.Set(ctx, "k", []byte("v"))
	_ = b.Close()

	if err := b.Ping(ctx); !errors.Is(err, storage.ErrClosed) {
		t.Fatalf("Ping = %v", err)
	}
	if _, err := b.Swap(ctx, "k", nil); !errors.Is(err, storage.ErrClosed) {
		t.Fatalf("Swap = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close = %v", err)
	}
}
