package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/pkg/config"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(config.JWTConfig{Secret: "s3cret", ExpireDuration: time.Hour})

	token, exp, err := issuer.Generate("b-1", "alice", RoleBuyer)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "b-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, RoleBuyer, claims.Role)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	token, _, err := NewTokenIssuer(config.JWTConfig{Secret: "a"}).Generate("x", "x", RoleAdmin)
	require.NoError(t, err)

	_, err = NewTokenIssuer(config.JWTConfig{Secret: "b"}).Parse(token)
	assert.Error(t, err)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer(config.JWTConfig{Secret: "s", ExpireDuration: time.Hour})
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := issuer.Generate("x", "x", RoleBuyer)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenIssuer_DefaultTTL(t *testing.T) {
	issuer := NewTokenIssuer(config.JWTConfig{Secret: "s"})
	assert.Equal(t, 24*time.Hour, issuer.ttl)
}
