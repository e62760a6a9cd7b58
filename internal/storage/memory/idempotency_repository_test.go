package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

func TestIdempotencyRepository_CreateAndGet(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()
	ttl := time.Now().UTC().Add(2 * time.Hour).Round(time.Second)

	created, err := repo.CreateProcessing(ctx, "idem-key-1", "hash-1", ttl)
	if err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	if created.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("expected status %s, got %s", domain.IdempotencyStatusProcessing, created.Status)
	}

	got, err := repo.Get(ctx, "idem-key-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RequestHash != "hash-1" {
		t.Fatalf("expected request_hash hash-1, got %s", got.RequestHash)
	}
	if !got.TTLAt.Equal(ttl) {
		t.Fatalf("expected ttl %s, got %s", ttl, got.TTLAt)
	}
}

func TestIdempotencyRepository_ConflictAndHashMismatch(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()
	ttl := time.Now().UTC().Add(time.Hour)

	if _, err := repo.CreateProcessing(ctx, "idem-key-2", "hash-a", ttl); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}

	if _, err := repo.CreateProcessing(ctx, "idem-key-2", "hash-a", ttl); !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("expected ErrIdempotencyKeyAlreadyExists, got %v", err)
	}

	if _, err := repo.CreateProcessing(ctx, "idem-key-2", "hash-b", ttl); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected ErrIdempotencyHashMismatch, got %v", err)
	}
}

func TestIdempotencyRepository_MarkDoneAndDeleteExpired(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()

	expiredTTL := time.Now().UTC().Add(-time.Minute)
	activeTTL := time.Now().UTC().Add(time.Hour)

	if _, err := repo.CreateProcessing(ctx, "idem-expired", "hash-expired", expiredTTL); err != nil {
		t.Fatalf("CreateProcessing expired failed: %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, "idem-active", "hash-active", activeTTL); err != nil {
		t.Fatalf("CreateProcessing active failed: %v", err)
	}

	if err := repo.MarkDone(ctx, "idem-active", []byte(`{"order_id":"o-1"}`), 0); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}

	active, err := repo.Get(ctx, "idem-active")
	if err != nil {
		t.Fatalf("Get active failed: %v", err)
	}
	if active.Status != domain.IdempotencyStatusDone {
		t.Fatalf("expected status %s, got %s", domain.IdempotencyStatusDone, active.Status)
	}
	if string(active.ResponseBody) != `{"order_id":"o-1"}` {
		t.Fatalf("unexpected response body %s", active.ResponseBody)
	}

	removed, err := repo.DeleteExpired(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected removed=1, got %d", removed)
	}

	if _, err := repo.Get(ctx, "idem-expired"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected expired key to be deleted, got %v", err)
	}
}

func TestIdempotencyRepository_ExpiredKeyCanBeReused(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()

	if _, err := repo.CreateProcessing(ctx, "idem-reuse", "hash-old", time.Now().UTC().Add(-time.Second)); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	rec, err := repo.CreateProcessing(ctx, "idem-reuse", "hash-new", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("expected expired key to be reusable, got %v", err)
	}
	if rec.RequestHash != "hash-new" {
		t.Fatalf("expected new hash, got %s", rec.RequestHash)
	}
}

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func TestIdempotencyRepository_ExpiredFailureIsReclaimedClean(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := memory.NewIdempotencyRepository(memory.WithIdempotencyClock(clock.Now))

	// Первый PlaceOrder упал на нехватке стока, отказ закеширован до TTL.
	if _, err := repo.CreateProcessing(ctx, "alice:checkout-7", "hash-cart-a", clock.now.Add(time.Hour)); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, "alice:checkout-7", []byte("encoded-status"), 9); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	clock.now = clock.now.Add(59 * time.Minute)
	if _, err := repo.CreateProcessing(ctx, "alice:checkout-7", "hash-cart-b", clock.now.Add(time.Hour)); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected hash mismatch before ttl, got %v", err)
	}

	clock.now = clock.now.Add(time.Minute)
	rec, err := repo.CreateProcessing(ctx, "alice:checkout-7", "hash-cart-b", clock.now.Add(time.Hour))
	if err != nil {
		t.Fatalf("expected key to be free at ttl, got %v", err)
	}
	if rec.Status != domain.IdempotencyStatusProcessing || len(rec.ResponseBody) != 0 || rec.StatusCode != 0 {
		t.Fatalf("reclaimed key must not keep the cached failure: %+v", rec)
	}
	if !rec.CreatedAt.Equal(clock.now) {
		t.Fatalf("expected created_at %s, got %s", clock.now, rec.CreatedAt)
	}
}

func TestIdempotencyRepository_DeleteExpiredOldestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := &manualClock{now: base}
	repo := memory.NewIdempotencyRepository(memory.WithIdempotencyClock(clock.Now))

	ttls := map[string]time.Duration{"k-oldest": time.Minute, "k-middle": 2 * time.Minute, "k-newest": 3 * time.Minute}
	for key, ttl := range ttls {
		if _, err := repo.CreateProcessing(ctx, key, "hash", base.Add(ttl)); err != nil {
			t.Fatalf("CreateProcessing %s failed: %v", key, err)
		}
	}

	removed, err := repo.DeleteExpired(ctx, base.Add(time.Hour), 2)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected removed=2, got %d", removed)
	}
	if _, err := repo.Get(ctx, "k-newest"); err != nil {
		t.Fatalf("newest key must survive a limited cleanup, got %v", err)
	}
	for _, key := range []string{"k-oldest", "k-middle"} {
		if _, err := repo.Get(ctx, key); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
			t.Fatalf("expected %s to be deleted, got %v", key, err)
		}
	}

	// Без before берётся время из часов репозитория.
	clock.now = base.Add(time.Hour)
	removed, err = repo.DeleteExpired(ctx, time.Time{}, 0)
	if err != nil || removed != 1 {
		t.Fatalf("expected the last key to be removed, got removed=%d err=%v", removed, err)
	}
}
