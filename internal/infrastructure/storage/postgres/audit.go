package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/audit"
)

// CompressionAlgo marks how the changes column is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

const defaultCompressThreshold = 4 * 1024

var _ audit.Recorder = (*AuditLog)(nil)

// AuditLog writes audit entries to sys_audit, zstd-compressing large change sets.
type AuditLog struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewAuditLog creates an audit log. Entries go through the tenant querier in ctx.
func NewAuditLog() (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditLog{encoder: encoder, decoder: decoder, threshold: defaultCompressThreshold}, nil
}

// encode returns the payload for the changes column.
func (l *AuditLog) encode(changes map[string]any) (plain, compressed []byte, algo CompressionAlgo, err error) {
	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, nil, "", fmt.Errorf("marshal changes: %w", err)
	}
	if len(raw) <= l.threshold {
		return raw, nil, CompressionNone, nil
	}
	return nil, l.encoder.EncodeAll(raw, nil), CompressionZstd, nil
}

func (l *AuditLog) decode(plain, compressed []byte, algo CompressionAlgo) (map[string]any, error) {
	raw := plain
	if algo == CompressionZstd {
		var err error
		if raw, err = l.decoder.DecodeAll(compressed, nil); err != nil {
			return nil, fmt.Errorf("decompress changes: %w", err)
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var changes map[string]any
	if err := json.Unmarshal(raw, &changes); err != nil {
		return nil, fmt.Errorf("unmarshal changes: %w", err)
	}
	return changes, nil
}

// Record inserts e.
func (l *AuditLog) Record(ctx context.Context, e audit.Entry) error {
	audit.Fill(ctx, &e)
	plain, compressed, algo, err := l.encode(e.Changes)
	if err != nil {
		return err
	}

	_, err = MustGetTxManager(ctx).GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (id, entity_type, entity_id, action, user_id, changes, changes_compressed, compression_algo, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`,
		e.ID, e.EntityType, e.EntityID, e.Action, e.UserID, plain, compressed, algo, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the latest entries of an entity, newest first.
func (l *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	rows, err := MustGetTxManager(ctx).GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, action, COALESCE(user_id::text, ''), changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e                 audit.Entry
			plain, compressed []byte
			algo              CompressionAlgo
			createdAt         time.Time
		)
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID, &plain, &compressed, &algo, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.Changes, err = l.decode(plain, compressed, algo); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
