package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "autoerp/internal/core/context"
)

// JWTConfig configures access tokens.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// DefaultJWTConfig returns a 24h HS256 configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "autoerp",
		AccessTokenTTL: 24 * time.Hour,
	}
}

// Claims are the access token claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID       string   `json:"uid"`
	TenantID     string   `json:"tid"`
	Email        string   `json:"email"`
	Role         string   `json:"role"`
	AgenceID     string   `json:"agence_id,omitempty"`
	Capabilities []string `json:"caps,omitempty"`
}

// JWTService signs and validates access tokens.
type JWTService struct {
	config JWTConfig
	now    func() time.Time
}

func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config, now: time.Now}
}

// GenerateAccessToken signs a token for u in tenantID.
func (s *JWTService) GenerateAccessToken(u *User, tenantID string, capabilities []string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:       u.ID.String(),
		TenantID:     tenantID,
		Email:        u.Email,
		Role:         u.Role,
		AgenceID:     u.AgenceIDString(),
		Capabilities: capabilities,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses a token and returns the user it was issued for.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return &appctx.UserContext{
		UserID:       claims.UserID,
		TenantID:     claims.TenantID,
		Email:        claims.Email,
		Role:         claims.Role,
		AgenceID:     claims.AgenceID,
		Capabilities: claims.Capabilities,
	}, nil
}
