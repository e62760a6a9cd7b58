package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
)

// DefaultTTL задаёт, сколько хранится ответ на запрос с idempotency-key.
const DefaultTTL = 24 * time.Hour

// Исходы Begin для метрик.
const (
	outcomeNew        = "new"
	outcomeReplay     = "replay"
	outcomeInProgress = "in_progress"
	outcomeConflict   = "conflict"
)

// Guard проводит запрос через жизненный цикл ключа: processing, затем done или failed.
// Повтор с тем же ключом и телом получает сохранённый ответ.
type Guard struct {
	repo    domain.IdempotencyRepository
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.IdempotencyMetrics
}

// NewGuard создаёт Guard; ttl <= 0 заменяется на DefaultTTL.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, m *metrics.IdempotencyMetrics) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{
		repo:    repo,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		metrics: m,
	}
}

// RequestHash считает отпечаток запроса по методу и каноничному телу.
func RequestHash(method string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Begin занимает ключ. replay=true означает, что запрос уже выполнен и record содержит ответ.
// Ключ, занятый другим телом запроса, даёт ErrIdempotencyHashMismatch,
// незавершённый запрос с тем же ключом даёт ErrIdempotencyInProgress.
func (g *Guard) Begin(ctx context.Context, method, key, requestHash string) (record domain.IdempotencyRecord, replay bool, err error) {
	record, err = g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		g.metrics.RecordRequest(method, outcomeNew)
		return record, false, nil
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		g.metrics.RecordRequest(method, outcomeConflict)
		return domain.IdempotencyRecord{}, false, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if !record.Replayable() {
			g.metrics.RecordRequest(method, outcomeInProgress)
			return domain.IdempotencyRecord{}, false, domain.ErrIdempotencyInProgress
		}
		g.metrics.RecordRequest(method, outcomeReplay)
		return record, true, nil
	default:
		return domain.IdempotencyRecord{}, false, fmt.Errorf("claim idempotency key: %w", err)
	}
}

// Complete сохраняет успешный ответ.
func (g *Guard) Complete(ctx context.Context, key string, body []byte, code int) error {
	return g.repo.MarkDone(ctx, key, body, code)
}

// Fail сохраняет ошибку, которую получат повторы запроса.
func (g *Guard) Fail(ctx context.Context, key string, body []byte, code int) error {
	return g.repo.MarkFailed(ctx, key, body, code)
}
