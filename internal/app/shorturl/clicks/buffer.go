// Package clicks 记录短链点击量。
//
// 计数分两层：Redis 里的增量（url_click:{code}）吸收高频写，
// Postgres 里的累计值（url_clicks 表）保底。增量跨过阈值后
// 整体搬进累计值，任何时刻 真实总数 == 累计值 + 未冲刷增量。
package clicks

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const clickKeyPrefix = "url_click:"

// Buffer 持有 Redis 中的点击增量。只做原子读写，冲刷策略在 Recorder。
type Buffer struct {
	client *redis.Client
}

func NewBuffer(client *redis.Client) *Buffer {
	return &Buffer{client: client}
}

func clickKey(code string) string {
	return clickKeyPrefix + code
}

// Incr 把 code 的增量加一并返回新值，键不存在时从 0 开始。
func (b *Buffer) Incr(ctx context.Context, code string) (int64, error) {
	return b.client.Incr(ctx, clickKey(code)).Result()
}

// Pending 返回尚未冲刷的增量，键不存在视为 0。
func (b *Buffer) Pending(ctx context.Context, code string) (int64, error) {
	n, err := b.client.Get(ctx, clickKey(code)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// Claim 用 GETDEL 原子地取走并清空增量。
// 读和清是同一条命令，两个并发冲刷者不可能拿到同一份增量；
// 返回 0 说明别人先领走了。
func (b *Buffer) Claim(ctx context.Context, code string) (int64, error) {
	n, err := b.client.GetDel(ctx, clickKey(code)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// Restore 把领走后没能落库的增量加回去。用 INCRBY 而不是 SET：
// 冲刷期间新进来的点击要和还回来的增量叠加，不能被覆盖。
func (b *Buffer) Restore(ctx context.Context, code string, delta int64) error {
	return b.client.IncrBy(ctx, clickKey(code), delta).Err()
}
