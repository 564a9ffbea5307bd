package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/portal"
)

const (
	otpPrefix     = "portal:otp:"
	sessionPrefix = "portal:session:"
)

// failScript counts a failed attempt without resurrecting an expired code.
var failScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// OTPStore keeps portal codes in Redis hashes that expire with the code.
type OTPStore struct {
	client redis.UniversalClient
}

func NewOTPStore(client redis.UniversalClient) *OTPStore {
	return &OTPStore{client: client}
}

func (s *OTPStore) Put(ctx context.Context, key string, otp portal.OTP, ttl time.Duration) error {
	k := otpPrefix + key
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k, "code", otp.Code, "client_id", otp.ClientID.String(), "attempts", otp.Attempts)
		pipe.Expire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put otp: %w", err)
	}
	return nil
}

func (s *OTPStore) Get(ctx context.Context, key string) (*portal.OTP, error) {
	vals, err := s.client.HGetAll(ctx, otpPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("get otp: %w", err)
	}
	if len(vals) == 0 {
		return nil, portal.ErrNotFound
	}
	otp := &portal.OTP{Code: vals["code"]}
	if otp.ClientID, err = id.Parse(vals["client_id"]); err != nil {
		return nil, fmt.Errorf("otp client id: %w", err)
	}
	if otp.Attempts, err = strconv.Atoi(vals["attempts"]); err != nil {
		return nil, fmt.Errorf("otp attempts: %w", err)
	}
	return otp, nil
}

func (s *OTPStore) Fail(ctx context.Context, key string) (int, error) {
	n, err := failScript.Run(ctx, s.client, []string{otpPrefix + key}).Int()
	if err != nil {
		return 0, fmt.Errorf("count otp failure: %w", err)
	}
	if n < 0 {
		return 0, portal.ErrNotFound
	}
	return n, nil
}

func (s *OTPStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, otpPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

var _ portal.OTPStore = (*OTPStore)(nil)

// SessionStore keeps portal sessions as JSON values.
type SessionStore struct {
	client redis.UniversalClient
}

func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Create(ctx context.Context, sess *portal.Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionPrefix+sess.Token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (*portal.Session, error) {
	payload, err := s.client.Get(ctx, sessionPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, portal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess portal.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.Token = token
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ portal.SessionStore = (*SessionStore)(nil)
