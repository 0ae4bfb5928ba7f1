package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Manager 把缓存和事实来源组合成一条固定的读写顺序，并执行双重过期策略。
//
// 读：先缓存，未命中或缓存故障再回源，回源命中后把副本补回去。
// 写：先事实来源（失败即整体失败），再尽力维护副本。
type Manager struct {
	durable DurableStore
	cache   CacheStore

	idleLifetime     time.Duration
	absoluteLifetime time.Duration

	// now 可注入，测试里用假时钟推动过期
	now func() time.Time
}

func NewManager(durable DurableStore, cache CacheStore, idleLifetime, absoluteLifetime time.Duration) *Manager {
	return &Manager{
		durable:          durable,
		cache:            cache,
		idleLifetime:     idleLifetime,
		absoluteLifetime: absoluteLifetime,
		now:              time.Now,
	}
}

// Create 为 userID 建立新会话，返回不透明令牌。
// 持久写失败时不会留下只存在于缓存的“幽灵会话”，直接整体失败；
// 缓存写失败只降低后续命中率，不影响会话成立。
func (m *Manager) Create(ctx context.Context, userID int64) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	now := m.now()
	s := Session{Token: token, UserID: userID, CreatedAt: now, LastActiveAt: now}

	if err := m.durable.Create(ctx, s); err != nil {
		slog.Error("会话落库失败", "user_id", userID, "err", err)
		return "", ErrAuthStoreUnavailable
	}
	if err := m.cache.Set(ctx, s, m.absoluteLifetime); err != nil {
		slog.Warn("会话写缓存失败", "err", err)
	}
	return token, nil
}

// Validate 校验令牌并返回 user id。
//
// 无论记录来自缓存还是事实来源，都要过同一套双重过期判定：
// 缓存 TTL 只是绝对生存期的兜底，空闲过期永远靠字段算出来。
// 判定过期的瞬间顺手把两边的记录清掉。
func (m *Manager) Validate(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidSession
	}

	s, ok, err := m.cache.Get(ctx, token)
	if err != nil {
		slog.Warn("会话缓存读取失败，回源持久存储", "err", err)
	}
	if err == nil && ok {
		if reason := m.expiryReason(s); reason != "" {
			m.purge(ctx, token, reason)
			return 0, ErrSessionExpired
		}
		return s.UserID, nil
	}

	s, err = m.durable.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return 0, ErrInvalidSession
		}
		slog.Error("会话回源失败", "err", err)
		return 0, ErrAuthStoreUnavailable
	}

	if reason := m.expiryReason(s); reason != "" {
		m.purge(ctx, token, reason)
		return 0, ErrSessionExpired
	}

	// 回填副本。TTL 取剩余的绝对生存期，缓存副本的寿命只缩不长。
	if ttl := m.absoluteLifetime - m.now().Sub(s.CreatedAt); ttl > 0 {
		if err := m.cache.Set(ctx, s, ttl); err != nil {
			slog.Warn("会话回填缓存失败", "err", err)
		}
	}
	return s.UserID, nil
}

// expiryReason 返回 "absolute"、"idle" 或空串（未过期）。
func (m *Manager) expiryReason(s Session) string {
	now := m.now()
	if now.Sub(s.CreatedAt) >= m.absoluteLifetime {
		return "absolute"
	}
	if now.Sub(s.LastActiveAt) >= m.idleLifetime {
		return "idle"
	}
	return ""
}

// purge 清掉已判定过期的会话，两边各自尽力，互不阻塞。
func (m *Manager) purge(ctx context.Context, token string, reason string) {
	slog.Info("会话过期", "reason", reason)
	if err := m.durable.DeleteByToken(ctx, token); err != nil {
		slog.Warn("过期会话落库删除失败", "err", err)
	}
	if err := m.cache.Delete(ctx, token); err != nil {
		slog.Warn("过期会话缓存删除失败", "err", err)
	}
}

// Touch 在一次成功校验后刷新活跃时间，推迟空闲过期。
// 纯后台维护写：任何失败只记日志，绝不让触发它的请求失败。
// 缓存侧只改字段不动 TTL，绝对生存期因此不受活跃影响。
func (m *Manager) Touch(ctx context.Context, token string) {
	now := m.now()
	if err := m.durable.UpdateLastActive(ctx, token, now); err != nil {
		slog.Warn("会话活跃时间落库失败", "err", err)
	}
	if err := m.cache.Touch(ctx, token, now); err != nil {
		slog.Warn("会话活跃时间写缓存失败", "err", err)
	}
}

// Destroy 主动吊销会话（登出、管理员删人）。
// 对两个存储独立地尽力删除：一边失败不拦着另一边，
// 宁可多删一次，也不能留下还能通过校验的陈旧副本。
func (m *Manager) Destroy(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := m.durable.DeleteByToken(ctx, token); err != nil {
		slog.Warn("会话落库删除失败", "err", err)
	}
	if err := m.cache.Delete(ctx, token); err != nil {
		slog.Warn("会话缓存删除失败", "err", err)
	}
}

// DestroyForUser 吊销某用户现存的会话。
// 登录走“新会话替换旧会话”的语义，先调这里再 Create。
func (m *Manager) DestroyForUser(ctx context.Context, userID int64) {
	s, err := m.durable.FindByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			slog.Warn("按用户查会话失败", "user_id", userID, "err", err)
		}
		return
	}
	m.Destroy(ctx, s.Token)
}
