// Package session 管理登录会话。
//
// 会话同时存在于两个地方：Postgres 是事实来源，Redis 是带 TTL 的副本。
// 有效性由双重生存期决定：距创建不超过绝对生存期，且距最近一次活跃
// 不超过空闲生存期。任一条件失效，两份记录都要清掉。
package session

import (
	"context"
	"errors"
	"time"
)

// Session 是会话记录，两个存储里的字段一一对应。
type Session struct {
	Token        string
	UserID       int64
	CreatedAt    time.Time
	LastActiveAt time.Time
}

var (
	// ErrInvalidSession：令牌为空或两边都查不到。对外表现为未认证。
	ErrInvalidSession = errors.New("invalid session")

	// ErrSessionExpired：会话超过了空闲或绝对生存期。
	// 和 ErrInvalidSession 的区分只进日志，对外同样是未认证。
	ErrSessionExpired = errors.New("session expired")

	// ErrAuthStoreUnavailable：事实来源不可用，无法判定会话真伪。
	// 上游必须按服务端故障处理，绝不能当成“未登录”放过或拒绝。
	ErrAuthStoreUnavailable = errors.New("auth store unavailable")

	// ErrSessionNotFound 由 DurableStore 实现返回，
	// Manager 把它翻译成 ErrInvalidSession 再往上抛。
	ErrSessionNotFound = errors.New("session not found")
)

// CacheStore 是会话的缓存端。整体不可用是允许的，Manager 会降级回源。
type CacheStore interface {
	// Set 写入副本并设置 TTL。TTL 始终等于剩余的绝对生存期，
	// 之后只会随回填缩短，永远不会被延长。
	Set(ctx context.Context, s Session, ttl time.Duration) error
	// Get 未命中时返回 ok=false 且 err=nil，err 只表示缓存自身故障。
	Get(ctx context.Context, token string) (Session, bool, error)
	// Touch 只更新 last_active_at 字段，禁止动 TTL。
	Touch(ctx context.Context, token string, lastActiveAt time.Time) error
	Delete(ctx context.Context, token string) error
}

// DurableStore 是会话的事实来源。
type DurableStore interface {
	Create(ctx context.Context, s Session) error
	// FindByToken 未找到时返回 ErrSessionNotFound。
	FindByToken(ctx context.Context, token string) (Session, error)
	// FindByUserID 返回该用户现存的会话，未找到时返回 ErrSessionNotFound。
	FindByUserID(ctx context.Context, userID int64) (Session, error)
	UpdateLastActive(ctx context.Context, token string, lastActiveAt time.Time) error
	DeleteByToken(ctx context.Context, token string) error
}
