// Package cache 为跳转热路径提供 L1（进程内）/ L2（Redis）两级缓存，
// 以及会话在 Redis 里的副本。
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/nodca/shorturl/internal/platform/metrics"
	"github.com/redis/go-redis/v9"
)

// notFoundSentinel 是负缓存哨兵。不用 "" 当哨兵：
// 空串分不清“未命中”和“命中了一个不存在的码”。
const notFoundSentinel = "__nil__"

const urlKeyPrefix = "url:"

// URLCache 缓存 短码 -> 目标地址。
// 只缓存可直接跳转的条目（启用且未设口令）；负缓存记录确认不存在的码。
type URLCache struct {
	client   *redis.Client
	local    *LocalCache // L1，可为 nil
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewURLCache(client *redis.Client, local *LocalCache) *URLCache {
	return &URLCache{
		client:   client,
		local:    local,
		ttl:      time.Hour,
		emptyTTL: 30 * time.Second,
	}
}

// Get 依次查 L1、L2。
// 返回值约定：命中负缓存返回哨兵值本身，两层都未命中返回 ("", nil)，
// err 非空只代表 Redis 故障。
func (c *URLCache) Get(ctx context.Context, code string) (string, error) {
	if c.local != nil {
		if url, ok := c.local.Get(code); ok {
			if url == notFoundSentinel {
				metrics.CacheOperations.WithLabelValues("l1", "hit_negative").Inc()
			} else {
				metrics.CacheOperations.WithLabelValues("l1", "hit").Inc()
			}
			return url, nil
		}
	}

	res, err := c.client.Get(ctx, urlKeyPrefix+code).Result()
	if err == redis.Nil {
		metrics.CacheOperations.WithLabelValues("l2", "miss").Inc()
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if res == notFoundSentinel {
		metrics.CacheOperations.WithLabelValues("l2", "hit_negative").Inc()
	} else {
		metrics.CacheOperations.WithLabelValues("l2", "hit").Inc()
	}

	// L2 命中回填 L1，下一次就近命中
	if c.local != nil {
		if res == notFoundSentinel {
			c.local.SetNotFound(code)
		} else {
			c.local.Set(code, res)
		}
	}
	return res, nil
}

func (c *URLCache) Set(ctx context.Context, code, url string) error {
	if c.local != nil {
		c.local.Set(code, url)
	}
	return c.client.Set(ctx, urlKeyPrefix+code, url, c.ttl).Err()
}

// SetNotFound 写负缓存，挡住对确认不存在短码的穿透查询。
// TTL 刻意很短：码随时可能被创建出来。
func (c *URLCache) SetNotFound(ctx context.Context, code string) error {
	if c.local != nil {
		c.local.SetNotFound(code)
	}
	return c.client.Set(ctx, urlKeyPrefix+code, notFoundSentinel, c.emptyTTL).Err()
}

// Delete 在短链被修改、停用或删除后调用，两层一起失效。
func (c *URLCache) Delete(ctx context.Context, code string) error {
	if c.local != nil {
		c.local.Del(code)
	}
	return c.client.Del(ctx, urlKeyPrefix+code).Err()
}

func (c *URLCache) Close() {
	if c.local != nil {
		c.local.Close()
		slog.Info("本地缓存已关闭")
	}
}
