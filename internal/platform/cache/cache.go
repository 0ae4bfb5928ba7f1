// Package cache 负责创建 Redis 客户端。
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient 建客户端并做一次连通性检查。
// Redis 在这套系统里全是可降级用途（缓存、限流、增量计数），
// 但启动时连不上还是要尽早暴露，而不是等流量进来才发现。
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
