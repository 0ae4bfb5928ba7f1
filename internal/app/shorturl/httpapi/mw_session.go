package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nodca/shorturl/internal/app/shorturl/repo"
	"github.com/nodca/shorturl/internal/app/shorturl/session"
	"github.com/nodca/shorturl/internal/platform/auth"
	"github.com/nodca/shorturl/internal/platform/metrics"
)

// 会话中间件放在业务包里而不是 platform/httpmiddleware：
// 它依赖 session.Manager，放平台层会造成 platform -> app 的反向依赖。

// parseBearer 解析 Authorization header 中的 Bearer token
// 格式不正确时返回空字符串
func parseBearer(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

// extractToken 取会话令牌：浏览器走 cookie，脚本和 curl 可以走 Bearer。
func extractToken(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	return parseBearer(c.GetHeader("Authorization"))
}

// SessionRequired 要求请求携带有效会话，校验通过后把身份放进请求上下文，
// 并顺手刷新会话的活跃时间。
//
// 令牌无效或过期回 401 并清掉客户端 cookie；
// 持久存储不可用时回 503，绝不能把“判定不了”当成“未登录”。
func SessionRequired(sm *session.Manager, opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c, opts.Name)
		if token == "" {
			metrics.SessionValidationsTotal.WithLabelValues("invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
			return
		}

		userID, err := sm.Validate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrAuthStoreUnavailable):
				metrics.SessionValidationsTotal.WithLabelValues("store_unavailable").Inc()
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "auth temporarily unavailable"})
			case errors.Is(err, session.ErrSessionExpired):
				metrics.SessionValidationsTotal.WithLabelValues("expired").Inc()
				clearSessionCookie(c, opts)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			default:
				metrics.SessionValidationsTotal.WithLabelValues("invalid").Inc()
				clearSessionCookie(c, opts)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			}
			return
		}

		metrics.SessionValidationsTotal.WithLabelValues("ok").Inc()
		sm.Touch(c.Request.Context(), token)

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), auth.Identity{
			UserID: userID,
		}))
		c.Next()
	}
}

// SessionOptional 有有效会话则带上身份，没有或校验不过就匿名继续。
// 注意：即使这里校验失败也不打断请求，所以不清 cookie，留给强制认证的路由处理。
func SessionOptional(sm *session.Manager, opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c, opts.Name)
		if token == "" {
			c.Next()
			return
		}

		userID, err := sm.Validate(c.Request.Context(), token)
		if err != nil {
			c.Next()
			return
		}

		metrics.SessionValidationsTotal.WithLabelValues("ok").Inc()
		sm.Touch(c.Request.Context(), token)

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), auth.Identity{
			UserID: userID,
		}))
		c.Next()
	}
}

// RequireRole 要求当前用户具有指定角色。
// 会话里只存 user_id，角色每次现查，改角色立即生效、无需重新登录。
func RequireRole(users *repo.UsersRepo, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.GetIdentity(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
			return
		}
		got, err := users.RoleByUserID(c.Request.Context(), id.UserID)
		if err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				// 会话还在但用户已被删，按未认证处理
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if got != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), auth.Identity{
			UserID: id.UserID,
			Role:   got,
		}))
		c.Next()
	}
}
