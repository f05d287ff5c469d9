package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/wyfcoding/storefront/pkg/auth"
	"github.com/wyfcoding/storefront/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// 只覆盖在调用服务之前结束的分支
func newRouter(claims *auth.Claims) *gin.Engine {
	h := NewAccountHandler(nil, nil, nil)
	r := gin.New()
	api := r.Group("/api")
	authed := api.Group("", func(c *gin.Context) {
		if claims != nil {
			middleware.SetClaims(c, claims)
		}
		c.Next()
	})
	h.RegisterRoutes(api, authed, authed.Group(""))
	return r
}

func TestBuyerEndpoints_OwnershipEnforced(t *testing.T) {
	cases := []struct {
		name   string
		claims *auth.Claims
		method string
		want   int
	}{
		{"anonymous", nil, http.MethodGet, http.StatusUnauthorized},
		{"other buyer get", &auth.Claims{UserID: "b-2", Role: auth.RoleBuyer}, http.MethodGet, http.StatusForbidden},
		{"other buyer update", &auth.Claims{UserID: "b-2", Role: auth.RoleBuyer}, http.MethodPut, http.StatusForbidden},
		{"other buyer delete", &auth.Claims{UserID: "b-2", Role: auth.RoleBuyer}, http.MethodDelete, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tc.method, "/api/buyers/b-1", strings.NewReader(`{}`))
			req.Header.Set("Content-Type", "application/json")
			newRouter(tc.claims).ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestRegistrationEndpoints_BindingErrors(t *testing.T) {
	r := newRouter(nil)
	for _, path := range []string{"/api/register/initiate", "/api/register/complete", "/api/register/resend", "/api/buyers/login", "/api/admins/login"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}
