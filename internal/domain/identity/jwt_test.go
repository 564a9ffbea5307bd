package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("k"))
	agence := id.New()
	u := &User{Base: entity.NewBase(), Email: "a@b.ma", Role: "tc", AgenceID: &agence}

	token, exp, err := svc.GenerateAccessToken(u, "t-1", []string{"clients:read"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), exp, time.Minute)

	uc, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "tc", uc.Role)
	assert.Equal(t, agence.String(), uc.AgenceID)
	assert.True(t, uc.Can("clients:read"))
	assert.False(t, uc.Can("users:manage"))
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("k"))
	u := &User{Base: entity.NewBase(), Email: "a@b.ma", Role: "tc"}
	token, _, err := svc.GenerateAccessToken(u, "t-1", nil)
	require.NoError(t, err)

	other := NewJWTService(DefaultJWTConfig("other"))
	_, err = other.ValidateToken(token)
	assert.Error(t, err)

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)

	_, err = svc.ValidateToken("garbage")
	assert.Error(t, err)
}
