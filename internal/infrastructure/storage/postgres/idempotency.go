package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"autoerp/internal/core/apperror"
)

// IdempotencyStatus is the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyPending IdempotencyStatus = "pending"
	IdempotencySuccess IdempotencyStatus = "success"
	IdempotencyFailed  IdempotencyStatus = "failed"
)

// stalePending is how long a pending key may stay untouched before another request reclaims it.
const stalePending = time.Minute

// IdempotencyReplay is a cached HTTP response.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore keeps X-Idempotency-Key records in the tenant database (sys_idempotency).
type IdempotencyStore struct {
	ttl     time.Duration
	querier func(ctx context.Context) Querier
}

// NewIdempotencyStore creates a store that resolves the tenant querier from ctx.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl: ttl,
		querier: func(ctx context.Context) Querier {
			return MustGetTxManager(ctx).GetQuerier(ctx)
		},
	}
}

// NewIdempotencyStoreWithQuerier binds the store to a fixed querier.
func NewIdempotencyStoreWithQuerier(q Querier, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{ttl: ttl, querier: func(context.Context) Querier { return q }}
}

const acquireSQL = `
INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
ON CONFLICT (idempotency_key) DO UPDATE SET expires_at = GREATEST(sys_idempotency.expires_at, EXCLUDED.expires_at)
RETURNING (xmax = 0), user_id, operation, status, request_hash,
          COALESCE(response, ''::bytea), COALESCE(response_status, 0), COALESCE(response_content_type, ''), updated_at`

// AcquireKey claims key for this request.
// It returns (nil, nil) when the caller owns the key, a replay when the operation
// already finished, and an AppError when the key is in flight or reused for another request.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := time.Now().UTC()

	var (
		inserted                         bool
		storedUser, storedOp, storedHash string
		status                           IdempotencyStatus
		body                             []byte
		statusCode                       int
		contentType                      string
		updatedAt                        time.Time
	)
	err := s.querier(ctx).QueryRow(ctx, acquireSQL,
		key, userID, operation, IdempotencyPending, requestHash, now, now.Add(s.ttl),
	).Scan(&inserted, &storedUser, &storedOp, &status, &storedHash, &body, &statusCode, &contentType, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if inserted {
		return nil, nil
	}

	if storedUser != userID || storedOp != operation || storedHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", storedOp).
			WithDetail("request_operation", operation)
	}

	switch status {
	case IdempotencySuccess, IdempotencyFailed:
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		if contentType == "" {
			contentType = "application/json"
		}
		return &IdempotencyReplay{StatusCode: statusCode, ContentType: contentType, Body: body}, nil
	}

	if now.Sub(updatedAt) <= stalePending {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	if _, err := s.querier(ctx).Exec(ctx,
		`UPDATE sys_idempotency SET updated_at = $1 WHERE idempotency_key = $2 AND status = $3`,
		now, key, IdempotencyPending,
	); err != nil {
		return nil, fmt.Errorf("reclaim stale idempotency key: %w", err)
	}
	return nil, nil
}

// CompleteKey stores a successful response for replay.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, IdempotencySuccess, statusCode, contentType, response)
}

// FailKey stores an error response for replay.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, IdempotencyFailed, statusCode, contentType, response)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status IdempotencyStatus, statusCode int, contentType string, response any) error {
	var body []byte
	if response != nil {
		b, err := json.Marshal(response)
		if err != nil {
			b, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		body = b
	}

	_, err := s.querier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1, response = $2, response_status = $3, response_content_type = $4, updated_at = $5
		WHERE idempotency_key = $6`,
		status, body, statusCode, contentType, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.querier(ctx).Exec(ctx, `DELETE FROM sys_idempotency WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
