package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/utils/ctxutil"
	"github.com/wyfcoding/storefront/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(issuer *auth.TokenIssuer, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{RequireAuth(issuer)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.UserID)
	})
	r.GET("/x", handlers...)
	return r
}

func TestRequireAuth_MissingToken(t *testing.T) {
	issuer := auth.NewTokenIssuer(config.JWTConfig{Secret: "s", ExpireDuration: time.Hour})
	r := newAuthRouter(issuer)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHENTICATED")
}

func TestRequireAuth_ValidToken(t *testing.T) {
	issuer := auth.NewTokenIssuer(config.JWTConfig{Secret: "s", ExpireDuration: time.Hour})
	token, _, err := issuer.Generate("b-7", "bob", auth.RoleBuyer)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	newAuthRouter(issuer).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b-7", w.Body.String())
}

func TestRequireAdmin_RejectsBuyer(t *testing.T) {
	issuer := auth.NewTokenIssuer(config.JWTConfig{Secret: "s", ExpireDuration: time.Hour})
	token, _, err := issuer.Generate("b-7", "bob", auth.RoleBuyer)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	newAuthRouter(issuer, RequireAdmin()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAuth_PropagatesIdentity(t *testing.T) {
	issuer := auth.NewTokenIssuer(config.JWTConfig{Secret: "s", ExpireDuration: time.Hour})
	token, _, err := issuer.Generate("a-1", "root", auth.RoleAdmin)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/x", RequireAuth(issuer), func(c *gin.Context) {
		ctx := c.Request.Context()
		c.String(http.StatusOK, ctxutil.GetUserID(ctx)+"/"+ctxutil.GetRole(ctx))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, "a-1/admin", w.Body.String())
}

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.err
}

func TestThrottle(t *testing.T) {
	cases := []struct {
		name    string
		limiter *stubLimiter
		want    int
	}{
		{"allowed", &stubLimiter{allowed: true}, http.StatusOK},
		{"denied", &stubLimiter{allowed: false}, http.StatusTooManyRequests},
		{"limiter down fails open", &stubLimiter{err: errors.New("redis down")}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/login", Throttle(tc.limiter, "auth"), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/login", nil)
			req.RemoteAddr = "10.0.0.7:5555"
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			assert.Equal(t, []string{"throttle:auth:10.0.0.7"}, tc.limiter.keys)
		})
	}
}

func TestThrottle_NilLimiterPassesThrough(t *testing.T) {
	r := gin.New()
	r.GET("/login", Throttle(nil, "auth"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestKeyedLocalLimiter_CountsPerKey(t *testing.T) {
	l := NewKeyedLocalLimiter(1, 2)
	ctx := context.Background()

	for range 2 {
		ok, err := l.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "a")
	assert.False(t, ok, "burst exhausted")

	ok, _ = l.Allow(ctx, "b")
	assert.True(t, ok, "other keys keep their own bucket")
}
