// Package middleware 商城鉴权与接口组限流中间件，通用中间件使用 wyfcoding/pkg/middleware
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/utils/ctxutil"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"github.com/wyfcoding/storefront/pkg/auth"
)

const claimsKey = "auth_claims"

// TokenParser 解析 bearer token
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// RequireAuth 校验 Authorization: Bearer <token>，失败返回 401
func RequireAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			apperr.Respond(c, apperr.Unauthenticated("missing bearer token"))
			return
		}

		claims, err := parser.Parse(strings.TrimSpace(token))
		if err != nil {
			apperr.Respond(c, apperr.Unauthenticated("invalid or expired token"))
			return
		}

		c.Set(claimsKey, claims)
		ctx := ctxutil.WithUserID(c.Request.Context(), claims.UserID)
		c.Request = c.Request.WithContext(ctxutil.WithRole(ctx, string(claims.Role)))
		c.Next()
	}
}

// RequireRole 要求已认证调用者具有指定角色，否则 403
func RequireRole(role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			apperr.Respond(c, apperr.Unauthenticated("authentication required"))
			return
		}
		if claims.Role != role {
			apperr.Respond(c, apperr.Unauthorized(string(role)+" role required"))
			return
		}
		c.Next()
	}
}

// RequireAdmin 仅管理员
func RequireAdmin() gin.HandlerFunc { return RequireRole(auth.RoleAdmin) }

// RequireBuyer 仅买家
func RequireBuyer() gin.HandlerFunc { return RequireRole(auth.RoleBuyer) }

// ClaimsFrom 取出当前请求的令牌载荷
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

// SetClaims 写入令牌载荷，供测试和内部路由使用
func SetClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(claimsKey, claims)
}
