package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// LocalCache 是 ristretto 承载的进程内 L1。
// TTL 取得比 L2 短：本地副本没有跨实例失效通道，只能靠快速过期收敛。
type LocalCache struct {
	cache    *ristretto.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewLocalCache 创建本地缓存。
// maxItems 是期望的最大条目数，maxCost 是内存上限（字节）。
func NewLocalCache(maxItems int64, maxCost int64) (*LocalCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10, // 准入计数器按条目数的 10 倍配
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{
		cache:    cache,
		ttl:      5 * time.Minute,
		emptyTTL: 10 * time.Second,
	}, nil
}

func (l *LocalCache) Get(code string) (string, bool) {
	if v, ok := l.cache.Get(code); ok {
		return v.(string), true
	}
	return "", false
}

func (l *LocalCache) Set(code, url string) {
	// cost=1，按条目数而不是字节数淘汰
	l.cache.SetWithTTL(code, url, 1, l.ttl)
}

func (l *LocalCache) SetNotFound(code string) {
	l.cache.SetWithTTL(code, notFoundSentinel, 1, l.emptyTTL)
}

func (l *LocalCache) Del(code string) {
	l.cache.Del(code)
}

func (l *LocalCache) Close() {
	l.cache.Close()
}
