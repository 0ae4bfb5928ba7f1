package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nodca/shorturl/internal/app/shorturl/repo"
	"github.com/nodca/shorturl/internal/app/shorturl/session"
)

// NewListUsersHandler 管理员的用户列表，给后台面板用。
func NewListUsersHandler(users *repo.UsersRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := users.List(c.Request.Context(), 200)
		if err != nil {
			slog.Error("查询用户列表失败", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		res := make([]UserInfoResponse, 0, len(list))
		for _, u := range list {
			res = append(res, userInfo(u))
		}
		c.JSON(http.StatusOK, res)
	}
}

// NewDeleteSelfHandler 注销自己的账号。
// 管理员不允许自我注销，防止把最后一个管理员删没了；想退出得先让别人摘掉角色。
// 注销成功后吊销自己的会话并清 cookie。
func NewDeleteSelfHandler(users *repo.UsersRepo, sm *session.Manager, opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustGetUserID(c)
		if !ok {
			return
		}
		role, err := users.RoleByUserID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if role == "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admins cannot delete their own account"})
			return
		}

		if err := users.Delete(c.Request.Context(), userID); err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			slog.Error("注销账号失败", "user_id", userID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		sm.DestroyForUser(c.Request.Context(), userID)
		clearSessionCookie(c, opts)
		slog.Info("用户注销了自己的账号", "user_id", userID)
		c.Status(http.StatusOK)
	}
}

// parseUserIDParam 解析路径里的 :id。
func parseUserIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

// NewAdminDeleteUserHandler 管理员删除其他用户，自己删自己走不到这条路（403）。
// 删除后立刻吊销目标用户的会话，不给残留会话可乘之机。
func NewAdminDeleteUserHandler(users *repo.UsersRepo, sm *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, ok := parseUserIDParam(c)
		if !ok {
			return
		}
		adminID, ok := mustGetUserID(c)
		if !ok {
			return
		}
		if targetID == adminID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admins cannot delete their own account"})
			return
		}

		// 先吊销会话再删行，删除失败时目标重新登录即可
		sm.DestroyForUser(c.Request.Context(), targetID)

		if err := users.Delete(c.Request.Context(), targetID); err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			slog.Error("管理员删除用户失败", "target_id", targetID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		slog.Info("管理员删除了用户", "admin_id", adminID, "target_id", targetID)
		c.Status(http.StatusOK)
	}
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

// NewSetRoleHandler 管理员调整其他用户的角色。
// 不允许改自己的角色；改完吊销目标会话，下次请求按新角色鉴权。
func NewSetRoleHandler(users *repo.UsersRepo, sm *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, ok := parseUserIDParam(c)
		if !ok {
			return
		}
		adminID, ok := mustGetUserID(c)
		if !ok {
			return
		}
		if targetID == adminID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admins cannot change their own role"})
			return
		}

		var req SetRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Role != "user" && req.Role != "admin" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "role must be user or admin"})
			return
		}

		if err := users.SetRole(c.Request.Context(), targetID, req.Role); err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			slog.Error("变更用户角色失败", "target_id", targetID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		sm.DestroyForUser(c.Request.Context(), targetID)
		slog.Info("管理员变更了用户角色", "admin_id", adminID, "target_id", targetID, "role", req.Role)
		c.Status(http.StatusOK)
	}
}
