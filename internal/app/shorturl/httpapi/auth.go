package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/nodca/shorturl/internal/app/shorturl/repo"
	"github.com/nodca/shorturl/internal/app/shorturl/session"
)

type SignupRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type UserInfoResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userInfo(u repo.User) UserInfoResponse {
	return UserInfoResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func NewSignupHandler(users *repo.UsersRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		userID, err := users.Create(c.Request.Context(), req.Email, req.FullName, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, repo.ErrUserAlreadyExists):
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, repo.ErrInvalidEmail),
				errors.Is(err, repo.ErrInvalidFullName),
				errors.Is(err, repo.ErrWeakPassword):
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				slog.Error("用户注册失败", "err", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": userID})
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewLoginHandler 校验凭据并建立新会话。
// 同一用户重复登录走“替换”语义：旧会话先吊销，再发新令牌。
// 查无此人和密码不对故意用同一句话回应，不让人探测邮箱是否注册过。
func NewLoginHandler(users *repo.UsersRepo, sm *session.Manager, opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		user, err := users.FindByEmail(c.Request.Context(), req.Email)
		if err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "email or password is incorrect"})
				return
			}
			slog.Error("按邮箱查用户失败", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			slog.Warn("登录口令校验失败", "user_id", user.ID)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "email or password is incorrect"})
			return
		}

		sm.DestroyForUser(c.Request.Context(), user.ID)

		token, err := sm.Create(c.Request.Context(), user.ID)
		if err != nil {
			slog.Error("建立会话失败", "user_id", user.ID, "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "auth temporarily unavailable"})
			return
		}

		setSessionCookie(c, opts, token)
		c.JSON(http.StatusOK, userInfo(user))
	}
}

// NewLogoutHandler 吊销当前会话。
// 没带 cookie 的登出回 204：没什么可做，但也不算错。
func NewLogoutHandler(sm *session.Manager, opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c, opts.Name)
		if token == "" {
			c.Status(http.StatusNoContent)
			return
		}
		sm.Destroy(c.Request.Context(), token)
		clearSessionCookie(c, opts)
		c.Status(http.StatusOK)
	}
}

// NewVerifyHandler 返回当前登录用户的信息，给前端做登录态探测和个人面板用。
// 会话有效但用户行已不存在时回 404（被管理员删号后残留的会话）。
func NewVerifyHandler(users *repo.UsersRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustGetUserID(c)
		if !ok {
			return
		}
		user, err := users.FindByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				slog.Warn("会话有效但用户不存在", "user_id", userID)
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			slog.Error("按 ID 查用户失败", "user_id", userID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, userInfo(user))
	}
}
