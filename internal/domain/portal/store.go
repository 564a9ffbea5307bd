// Package portal is the public reseller surface: phone OTP login, a
// read-only catalog, checkout of draft orders and order tracking.
package portal

import (
	"context"
	"errors"
	"time"

	"autoerp/internal/core/id"
)

// ErrNotFound is returned by stores for missing or expired keys.
var ErrNotFound = errors.New("portal: key not found")

// OTP is a pending one-time code.
type OTP struct {
	Code     string `json:"code"`
	ClientID id.ID  `json:"client_id"`
	Attempts int    `json:"attempts"`
}

// OTPStore keeps one pending code per phone with a time to live.
type OTPStore interface {
	Put(ctx context.Context, key string, otp OTP, ttl time.Duration) error
	Get(ctx context.Context, key string) (*OTP, error)
	// Fail increments the failed attempts of key and returns the new count.
	Fail(ctx context.Context, key string) (int, error)
	Delete(ctx context.Context, key string) error
}

// Session is an authenticated portal session.
type Session struct {
	Token     string    `json:"-"`
	TenantID  string    `json:"tenant_id"`
	ClientID  id.ID     `json:"client_id"`
	Telephone string    `json:"telephone"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps portal sessions by token.
type SessionStore interface {
	Create(ctx context.Context, s *Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}
