package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nodca/shorturl/internal/platform/auth"
)

// CookieOptions 描述会话 cookie 的发放方式。
// MaxAge 跟会话的绝对生存期一致，cookie 不应活得比会话久。
type CookieOptions struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

func setSessionCookie(c *gin.Context, opts CookieOptions, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(opts.Name, token, int(opts.MaxAge/time.Second), "/", "", opts.Secure, true)
	// 禁止浏览器缓存带 Set-Cookie 的响应
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
}

func clearSessionCookie(c *gin.Context, opts CookieOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(opts.Name, "", -1, "/", "", opts.Secure, true)
}

// mustGetUserID 从上下文中获取用户ID，失败时返回错误响应
// 返回 userID 和是否成功，失败时已写入错误响应
func mustGetUserID(c *gin.Context) (int64, bool) {
	identity, ok := auth.GetIdentity(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return 0, false
	}
	return identity.UserID, true
}

// tryGetUserID 尝试从上下文中获取用户ID（可选认证场景）
// 未登录时返回 nil
func tryGetUserID(c *gin.Context) *int64 {
	identity, ok := auth.GetIdentity(c.Request.Context())
	if !ok {
		return nil
	}
	id := identity.UserID
	return &id
}
