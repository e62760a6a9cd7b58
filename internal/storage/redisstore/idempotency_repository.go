package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const (
	keyIdempotency        = "bookstore:idem:%s"
	defaultIdempotencyTTL = 24 * time.Hour
)

// idempotencyRecord хранит запись в Redis в виде JSON.
type idempotencyRecord struct {
	RequestHash  string    `json:"request_hash"`
	Status       string    `json:"status"`
	StatusCode   int       `json:"status_code"`
	ResponseBody []byte    `json:"response_body,omitempty"`
	TTLAt        time.Time `json:"ttl_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IdempotencyRepository хранит ключи идемпотентности в Redis; срок жизни отдаётся самому Redis.
type IdempotencyRepository struct {
	rdb redis.UniversalClient
}

// NewIdempotencyRepository создаёт Redis-реализацию IdempotencyRepository.
func NewIdempotencyRepository(rdb redis.UniversalClient) *IdempotencyRepository {
	return &IdempotencyRepository{rdb: rdb}
}

// CreateProcessing атомарно занимает ключ через SET NX.
func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := time.Now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}
	rec := idempotencyRecord{
		RequestHash: requestHash,
		Status:      string(domain.IdempotencyStatusProcessing),
		TTLAt:       ttlAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("encode idempotency record: %w", err)
	}

	ok, err := r.rdb.SetNX(ctx, redisKey(key), raw, ttlFrom(now, ttlAt)).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
	}
	if ok {
		return rec.toDomain(key), nil
	}

	existing, err := r.Get(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
	}
	if existing.RequestHash != requestHash {
		return existing, domain.ErrIdempotencyHashMismatch
	}
	return existing, domain.ErrIdempotencyKeyAlreadyExists
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	rec, err := r.load(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	return rec.toDomain(key), nil
}

func (r *IdempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, statusCode int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusDone, responseBody, statusCode)
}

func (r *IdempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, statusCode int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusFailed, responseBody, statusCode)
}

// DeleteExpired ничего не делает: просроченные ключи удаляет сам Redis.
func (r *IdempotencyRepository) DeleteExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func (r *IdempotencyRepository) markStatus(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, statusCode int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}
	rec, err := r.load(ctx, key)
	if err != nil {
		return err
	}
	rec.Status = string(status)
	rec.StatusCode = statusCode
	rec.ResponseBody = append([]byte(nil), responseBody...)
	rec.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	// XX + KEEPTTL: обновляем только существующий ключ, не продлевая срок жизни.
	err = r.rdb.SetArgs(ctx, redisKey(key), raw, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("mark idempotency key status: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) load(ctx context.Context, key string) (idempotencyRecord, error) {
	raw, err := r.rdb.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return idempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return idempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}

	var rec idempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return idempotencyRecord{}, fmt.Errorf("decode idempotency record %s: %w", key, err)
	}
	if !domain.IdempotencyStatus(rec.Status).Valid() {
		return idempotencyRecord{}, fmt.Errorf("invalid idempotency status %q for key %s", rec.Status, key)
	}
	return rec, nil
}

func (rec idempotencyRecord) toDomain(key string) domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Key:          key,
		RequestHash:  rec.RequestHash,
		ResponseBody: append([]byte(nil), rec.ResponseBody...),
		StatusCode:   rec.StatusCode,
		Status:       domain.IdempotencyStatus(rec.Status),
		TTLAt:        rec.TTLAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func redisKey(key string) string {
	return fmt.Sprintf(keyIdempotency, key)
}

// ttlFrom не даёт нулевой TTL: для SET ноль означает «без срока».
func ttlFrom(now, ttlAt time.Time) time.Duration {
	ttl := ttlAt.Sub(now)
	if ttl < time.Millisecond {
		return time.Millisecond
	}
	return ttl
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
