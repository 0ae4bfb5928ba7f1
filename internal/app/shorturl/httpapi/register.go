package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nodca/shorturl/internal/app/shorturl/clicks"
	"github.com/nodca/shorturl/internal/app/shorturl/repo"
	"github.com/nodca/shorturl/internal/app/shorturl/session"
	"github.com/nodca/shorturl/internal/app/shorturl/stats"
	"github.com/nodca/shorturl/internal/platform/httpmiddleware"
	"github.com/nodca/shorturl/internal/platform/ratelimit"
)

// 约定：本包只做传输层工作，领域逻辑在 internal/app/shorturl，
// cmd/api 只负责组装和挂载，避免路由散落在 main.go。

// RegisterPublicRoutes 在根路由上挂载跳转入口。
//
// 跳转刻意不放在 /api/v1 下：短链的使用方式就是直接在浏览器输入 /{code}，
// 以后做域名拆分（s.example.com 与 api.example.com）也更顺滑。
func RegisterPublicRoutes(r *gin.Engine, urls *repo.URLsRepo, recorder *clicks.Recorder, collector stats.Collector, limiter *ratelimit.Limiter) {
	//跳转 100次/分钟
	r.GET("/:code", httpmiddleware.RateLimit(limiter, "redirect", 100, time.Minute), NewRedirectHandler(urls, recorder, collector))

	// 浏览器会自动请求 favicon，别让它打到 /:code 上白查一次
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// RegisterAPIRoutes 在给定分组（/api/v1）下挂载短链与账号 API。
func RegisterAPIRoutes(api *gin.RouterGroup, urls *repo.URLsRepo, users *repo.UsersRepo, sm *session.Manager, recorder *clicks.Recorder, collector stats.Collector, limiter *ratelimit.Limiter, cookie CookieOptions) {
	// 账号与会话
	//注册 3次/分钟
	api.POST("/auth/signup", httpmiddleware.RateLimit(limiter, "signup", 3, time.Minute), NewSignupHandler(users))
	//登录 5次/分钟
	api.POST("/auth/login", httpmiddleware.RateLimit(limiter, "login", 5, time.Minute), NewLoginHandler(users, sm, cookie))
	api.POST("/auth/logout", NewLogoutHandler(sm, cookie))
	api.GET("/auth/verify", SessionRequired(sm, cookie), NewVerifyHandler(users))

	// 短链，匿名也能建（登录则归属到账号）
	//创建 10次/分钟
	api.POST("/urls", SessionOptional(sm, cookie), httpmiddleware.RateLimit(limiter, "create", 10, time.Minute), NewCreateURLHandler(urls))
	api.GET("/urls/:code", NewFindURLHandler(urls))
	//解锁 10次/分钟，口令可以被在线爆破，限流是唯一的闸
	api.POST("/urls/:code/unlock", httpmiddleware.RateLimit(limiter, "unlock", 10, time.Minute), NewUnlockHandler(urls, recorder, collector))

	// 需要登录的路由
	authed := api.Group("/users")
	authed.Use(SessionRequired(sm, cookie))
	authed.GET("/mine", NewMineHandler(urls))
	authed.DELETE("/mine/:code", NewDeleteMineHandler(urls))
	authed.POST("/mine/:code/active", NewSetActiveHandler(urls))
	authed.GET("/urls/:code/stats", NewStatsHandler(urls, recorder))
	authed.DELETE("/me", NewDeleteSelfHandler(users, sm, cookie))

	// 需要管理员的路由
	admin := api.Group("/admin")
	admin.Use(SessionRequired(sm, cookie), RequireRole(users, "admin"))
	admin.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	admin.POST("/urls/:code/disable", NewDisableHandler(urls))
	admin.GET("/users", NewListUsersHandler(users))
	admin.DELETE("/users/:id", NewAdminDeleteUserHandler(users, sm))
	admin.PATCH("/users/:id/role", NewSetRoleHandler(users, sm))
}
