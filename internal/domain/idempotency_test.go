package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

func TestIdempotencyStatusValid(t *testing.T) {
	for _, status := range []domain.IdempotencyStatus{
		domain.IdempotencyStatusProcessing,
		domain.IdempotencyStatusDone,
		domain.IdempotencyStatusFailed,
	} {
		if !status.Valid() {
			t.Fatalf("status %q must be valid", status)
		}
	}
	if domain.IdempotencyStatus("completed").Valid() {
		t.Fatal("order status must not be accepted as idempotency status")
	}
}

func TestIdempotencyRecordExpired(t *testing.T) {
	placedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := domain.IdempotencyRecord{Key: "alice:checkout-1", TTLAt: placedAt.Add(24 * time.Hour)}

	if rec.Expired(placedAt) {
		t.Fatal("fresh record must not be expired")
	}
	if !rec.Expired(rec.TTLAt) {
		t.Fatal("record must expire exactly at ttl")
	}
	if !rec.Expired(rec.TTLAt.Add(time.Second)) {
		t.Fatal("record must stay expired after ttl")
	}
}

func TestIdempotencyRecordReplayable(t *testing.T) {
	tests := []struct {
		status domain.IdempotencyStatus
		want   bool
	}{
		// PlaceOrder ещё идёт: повтор должен получить in-progress, а не пустой ответ.
		{domain.IdempotencyStatusProcessing, false},
		{domain.IdempotencyStatusDone, true},
		// Отказ по стоку тоже отдаётся повтору как есть.
		{domain.IdempotencyStatusFailed, true},
	}

	for _, tt := range tests {
		rec := domain.IdempotencyRecord{Status: tt.status}
		if got := rec.Replayable(); got != tt.want {
			t.Errorf("Replayable() for %q = %v, want %v", tt.status, got, tt.want)
		}
	}
}
