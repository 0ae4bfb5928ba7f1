package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/nodca/shorturl/internal/app/shorturl/session"
	"github.com/nodca/shorturl/internal/platform/metrics"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// SessionCache 把会话副本存成 Redis HASH（session:{token}），
// 实现 session.CacheStore。
//
// TTL 对应剩余的绝对生存期，由调用方算好传进来；这里只负责
// 守住“Touch 不动 TTL”这条线，空闲过期永远由字段判定。
type SessionCache struct {
	client *redis.Client
}

func NewSessionCache(client *redis.Client) *SessionCache {
	return &SessionCache{client: client}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func (c *SessionCache) Set(ctx context.Context, s session.Session, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := sessionKey(s.Token)
	fields := map[string]any{
		"user_id":        strconv.FormatInt(s.UserID, 10),
		"created_at":     s.CreatedAt.UTC().Format(time.RFC3339Nano),
		"last_active_at": s.LastActiveAt.UTC().Format(time.RFC3339Nano),
	}
	if err := c.client.HSet(ctx, key, fields).Err(); err != nil {
		return err
	}
	return c.client.Expire(ctx, key, ttl).Err()
}

func (c *SessionCache) Get(ctx context.Context, token string) (session.Session, bool, error) {
	fields, err := c.client.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil {
		return session.Session{}, false, err
	}
	if len(fields) == 0 {
		metrics.CacheOperations.WithLabelValues("session", "miss").Inc()
		return session.Session{}, false, nil
	}

	s, err := parseSessionHash(token, fields)
	if err != nil {
		// 字段不完整或格式坏掉：当未命中处理，让上层回源重建副本
		metrics.CacheOperations.WithLabelValues("session", "corrupt").Inc()
		return session.Session{}, false, nil
	}
	metrics.CacheOperations.WithLabelValues("session", "hit").Inc()
	return s, true, nil
}

func parseSessionHash(token string, fields map[string]string) (session.Session, error) {
	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return session.Session{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return session.Session{}, err
	}
	lastActiveAt, err := time.Parse(time.RFC3339Nano, fields["last_active_at"])
	if err != nil {
		return session.Session{}, err
	}
	return session.Session{
		Token:        token,
		UserID:       userID,
		CreatedAt:    createdAt,
		LastActiveAt: lastActiveAt,
	}, nil
}

// Touch 只重写 last_active_at 一个字段，不碰 TTL。
// 先 EXISTS 再 HSET：对已过期的键做 HSET 会凭空造出一个
// 没有 TTL 的孤儿哈希。
func (c *SessionCache) Touch(ctx context.Context, token string, lastActiveAt time.Time) error {
	key := sessionKey(token)
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return c.client.HSet(ctx, key, "last_active_at", lastActiveAt.UTC().Format(time.RFC3339Nano)).Err()
}

func (c *SessionCache) Delete(ctx context.Context, token string) error {
	return c.client.Del(ctx, sessionKey(token)).Err()
}
