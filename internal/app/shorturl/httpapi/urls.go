package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nodca/shorturl/internal/app/shorturl"
	"github.com/nodca/shorturl/internal/app/shorturl/clicks"
	"github.com/nodca/shorturl/internal/app/shorturl/repo"
	"github.com/nodca/shorturl/internal/app/shorturl/stats"
	"github.com/nodca/shorturl/internal/platform/httpmiddleware"
	"github.com/nodca/shorturl/internal/platform/metrics"
)

// handler 只做“翻译”：HTTP <-> 领域（参数校验、错误映射、响应格式），
// 领域逻辑在 internal/app/shorturl，SQL 在 internal/app/shorturl/repo。

type CreateURLRequest struct {
	OriginalURL string `json:"original_url"`
	Title       string `json:"title"`
	CustomAlias string `json:"custom_alias,omitempty"`
	Password    string `json:"password,omitempty"`
	// IsActive 不传默认 true
	IsActive *bool `json:"is_active,omitempty"`
}

type CreateURLResponse struct {
	Code        string `json:"code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
	Title       string `json:"title"`
	Protected   bool   `json:"protected"`
}

func NewCreateURLHandler(creator shorturl.Creator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := shorturl.ValidateURL(req.OriginalURL); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := shorturl.ValidateTitle(req.Title); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.CustomAlias != "" {
			if err := shorturl.ValidateAlias(req.CustomAlias); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if req.Password != "" {
			if err := shorturl.ValidateLinkPassword(req.Password); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}

		u, err := creator.Create(c.Request.Context(), shorturl.CreateURLParams{
			UserID:      tryGetUserID(c),
			OriginalURL: req.OriginalURL,
			Title:       req.Title,
			CustomAlias: req.CustomAlias,
			Password:    req.Password,
			IsActive:    isActive,
		})
		if err != nil {
			if errors.Is(err, shorturl.ErrAliasTaken) {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			slog.Error("创建短链失败", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "url create failed"})
			return
		}

		c.JSON(http.StatusCreated, CreateURLResponse{
			Code:        u.Code,
			ShortURL:    buildShortURL(c, u.Code),
			OriginalURL: u.OriginalURL,
			Title:       u.Title,
			Protected:   u.Protected,
		})
	}
}

// buildShortURL 用请求里的 Host 拼出对外的短链地址，经反代时以 X-Forwarded-Proto 为准。
func buildShortURL(c *gin.Context, code string) string {
	path := "/" + code
	scheme := c.Request.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
	}
	if host := c.Request.Host; host != "" {
		return scheme + "://" + host + path
	}
	return path
}

func NewRedirectHandler(resolver shorturl.Resolver, recorder *clicks.Recorder, collector stats.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		url, err := resolver.Resolve(c.Request.Context(), code)
		if err != nil {
			switch {
			case errors.Is(err, shorturl.ErrURLProtected):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "url is password protected", "code": code})
			case errors.Is(err, shorturl.ErrURLNotFound):
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "url not found"})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		metrics.RedirectsTotal.Inc()

		// 计数只是一次缓存自增，明细完全异步；
		// 每跨过阈值的那次跳转顺带把攒下的增量落库
		recorder.RecordClick(c.Request.Context(), code)
		collector.Collect(stats.ClickEvent{
			Code:      code,
			ClickedAt: time.Now(),
			IP:        httpmiddleware.ClientIP(c.Request),
			UserAgent: c.Request.UserAgent(),
			Referer:   c.Request.Referer(),
		})

		c.Redirect(http.StatusFound, url)
	}
}

type UnlockRequest struct {
	Password string `json:"password"`
}

// NewUnlockHandler 用口令换取目标地址。
// 解锁成功等同完成一次访问，照常计点击。
func NewUnlockHandler(urls *repo.URLsRepo, recorder *clicks.Recorder, collector stats.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		var req UnlockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		url, err := urls.Unlock(c.Request.Context(), code, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, shorturl.ErrURLNotFound):
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "url not found"})
			case errors.Is(err, shorturl.ErrWrongLinkPassword):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		recorder.RecordClick(c.Request.Context(), code)
		collector.Collect(stats.ClickEvent{
			Code:      code,
			ClickedAt: time.Now(),
			IP:        httpmiddleware.ClientIP(c.Request),
			UserAgent: c.Request.UserAgent(),
			Referer:   c.Request.Referer(),
		})

		c.JSON(http.StatusOK, gin.H{"original_url": url})
	}
}

type URLInfoResponse struct {
	Code        string    `json:"code"`
	OriginalURL string    `json:"original_url,omitempty"`
	Title       string    `json:"title"`
	IsActive    bool      `json:"is_active"`
	Protected   bool      `json:"protected"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewFindURLHandler 返回短码的元数据。
// 带口令的短链不暴露目标地址，解锁前只能看到“它存在”。
func NewFindURLHandler(urls *repo.URLsRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		u, err := urls.FindByCode(c.Request.Context(), code)
		if err != nil {
			if errors.Is(err, shorturl.ErrURLNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		res := URLInfoResponse{
			Code:      u.Code,
			Title:     u.Title,
			IsActive:  u.IsActive,
			Protected: u.Protected,
			CreatedAt: u.CreatedAt,
		}
		if !u.Protected {
			res.OriginalURL = u.OriginalURL
		}
		c.JSON(http.StatusOK, res)
	}
}

func NewMineHandler(urls *repo.URLsRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustGetUserID(c)
		if !ok {
			return
		}
		list, err := urls.ListByUserID(c.Request.Context(), userID, 50)
		if err != nil {
			slog.Error("查询用户短链列表失败", "user_id", userID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func NewDeleteMineHandler(urls *repo.URLsRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		userID, ok := mustGetUserID(c)
		if !ok {
			return
		}
		if err := urls.Delete(c.Request.Context(), code, userID); err != nil {
			if errors.Is(err, shorturl.ErrURLNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			slog.Error("删除短链失败", "code", code, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Status(http.StatusOK)
	}
}

type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

func NewSetActiveHandler(urls *repo.URLsRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		userID, ok := mustGetUserID(c)
		if !ok {
			return
		}
		var req SetActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := urls.SetActive(c.Request.Context(), code, userID, req.IsActive); err != nil {
			if errors.Is(err, shorturl.ErrURLNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			slog.Error("更新短链状态失败", "code", code, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Status(http.StatusOK)
	}
}

type URLStatsResponse struct {
	Code string `json:"code"`
	// TotalClicks = 已落库 + 缓冲中尚未冲刷的增量
	TotalClicks   int64                `json:"total_clicks"`
	PendingClicks int64                `json:"pending_clicks"`
	Events        []repo.ClickEventRow `json:"events"`
	NextCursor    *int64               `json:"next_cursor,omitempty"`
}

// NewStatsHandler 返回短码的点击统计：实时总数加最近的点击明细。
// 只有短链属主能看。
func NewStatsHandler(urls *repo.URLsRepo, recorder *clicks.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		userID, ok := mustGetUserID(c)
		if !ok {
			return
		}
		owns, err := urls.UserOwnsURL(c.Request.Context(), userID, code)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !owns {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no permission"})
			return
		}

		limit := 20
		if l := c.Query("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
				limit = n
			} else {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
		}
		var cursor int64 = 0
		if q := c.Query("cursor"); q != "" {
			if n, err := strconv.ParseInt(q, 10, 64); err == nil && n > 0 {
				cursor = n
			} else {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
				return
			}
		}

		total, err := recorder.TotalClicks(c.Request.Context(), code)
		if err != nil {
			slog.Error("查询点击总数失败", "code", code, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		pending, err := recorder.PendingClicks(c.Request.Context(), code)
		if err != nil {
			// 缓冲层故障只影响未冲刷的零头，统计仍按落库值给出
			slog.Warn("查询点击缓冲失败", "code", code, "err", err)
			pending = 0
		}

		events, next, err := urls.ListClickEvents(c.Request.Context(), code, limit, cursor)
		if err != nil {
			slog.Error("查询点击明细失败", "code", code, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, URLStatsResponse{
			Code:          code,
			TotalClicks:   total + pending,
			PendingClicks: pending,
			Events:        events,
			NextCursor:    next,
		})
	}
}

// NewDisableHandler 管理员强制下线短码，属主自己的启停走 SetActive。
func NewDisableHandler(urls *repo.URLsRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		err := urls.DisableByCode(c.Request.Context(), code)
		if err != nil {
			switch {
			case errors.Is(err, shorturl.ErrURLNotFound):
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, repo.ErrAlreadyDisabled):
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}
		c.Status(http.StatusOK)
	}
}
