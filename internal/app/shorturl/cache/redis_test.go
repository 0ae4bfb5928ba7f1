package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/nodca/shorturl/internal/app/shorturl/session"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis 不可用（%s）：%v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestURLCacheSetGetDelete(t *testing.T) {
	client := newTestRedis(t)
	c := NewURLCache(client, nil)
	ctx := context.Background()

	code := fmt.Sprintf("ctest%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), urlKeyPrefix+code) })

	// 未写入前是未命中
	got, err := c.Get(ctx, code)
	if err != nil || got != "" {
		t.Fatalf("Get before Set: got %q, %v, want \"\", nil", got, err)
	}

	if err := c.Set(ctx, code, "https://example.com/a"); err != nil {
		t.Fatalf("Set: unexpected error: %v", err)
	}
	got, err = c.Get(ctx, code)
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	if got != "https://example.com/a" {
		t.Fatalf("Get: got %q, want %q", got, "https://example.com/a")
	}

	if err := c.Delete(ctx, code); err != nil {
		t.Fatalf("Delete: unexpected error: %v", err)
	}
	if got, _ := c.Get(ctx, code); got != "" {
		t.Fatalf("Get after Delete: got %q, want \"\"", got)
	}
}

func TestURLCacheNegativeSentinel(t *testing.T) {
	client := newTestRedis(t)
	c := NewURLCache(client, nil)
	ctx := context.Background()

	code := fmt.Sprintf("ntest%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), urlKeyPrefix+code) })

	if err := c.SetNotFound(ctx, code); err != nil {
		t.Fatalf("SetNotFound: unexpected error: %v", err)
	}
	got, err := c.Get(ctx, code)
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	// 负缓存命中返回哨兵值，调用方据此直接判 404
	if got != notFoundSentinel {
		t.Fatalf("Get negative entry: got %q, want sentinel %q", got, notFoundSentinel)
	}
}

func TestURLCacheWithLocalLayer(t *testing.T) {
	client := newTestRedis(t)
	local, err := NewLocalCache(1000, 1<<20)
	if err != nil {
		t.Fatalf("NewLocalCache: unexpected error: %v", err)
	}
	c := NewURLCache(client, local)
	t.Cleanup(c.Close)
	ctx := context.Background()

	code := fmt.Sprintf("ltest%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), urlKeyPrefix+code) })

	if err := c.Set(ctx, code, "https://example.com/b"); err != nil {
		t.Fatalf("Set: unexpected error: %v", err)
	}
	// 不论这次从 L1 还是 L2 命中，结果一致
	got, err := c.Get(ctx, code)
	if err != nil || got != "https://example.com/b" {
		t.Fatalf("Get: got %q, %v", got, err)
	}
}

func TestSessionCacheRoundTrip(t *testing.T) {
	client := newTestRedis(t)
	sc := NewSessionCache(client)
	ctx := context.Background()

	token := fmt.Sprintf("stest%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), sessionKey(token)) })

	created := time.Now().UTC().Truncate(time.Millisecond)
	s := session.Session{Token: token, UserID: 42, CreatedAt: created, LastActiveAt: created}
	if err := sc.Set(ctx, s, time.Hour); err != nil {
		t.Fatalf("Set: unexpected error: %v", err)
	}

	got, ok, err := sc.Get(ctx, token)
	if err != nil || !ok {
		t.Fatalf("Get: got ok=%v err=%v, want hit", ok, err)
	}
	if got.UserID != 42 {
		t.Fatalf("UserID: got %d, want 42", got.UserID)
	}
	if !got.CreatedAt.Equal(created) || !got.LastActiveAt.Equal(created) {
		t.Fatalf("timestamps: got %v/%v, want %v", got.CreatedAt, got.LastActiveAt, created)
	}

	ttl, err := client.TTL(ctx, sessionKey(token)).Result()
	if err != nil {
		t.Fatalf("TTL: unexpected error: %v", err)
	}
	if ttl <= 59*time.Minute || ttl > time.Hour {
		t.Fatalf("TTL: got %v, want (59m, 1h]", ttl)
	}

	// Touch 只改活跃字段
	later := created.Add(10 * time.Minute)
	if err := sc.Touch(ctx, token, later); err != nil {
		t.Fatalf("Touch: unexpected error: %v", err)
	}
	got, ok, err = sc.Get(ctx, token)
	if err != nil || !ok {
		t.Fatalf("Get after Touch: got ok=%v err=%v", ok, err)
	}
	if !got.LastActiveAt.Equal(later) {
		t.Fatalf("LastActiveAt after Touch: got %v, want %v", got.LastActiveAt, later)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt changed by Touch: got %v, want %v", got.CreatedAt, created)
	}
}

func TestSessionCacheTouchMissingKeyCreatesNothing(t *testing.T) {
	client := newTestRedis(t)
	sc := NewSessionCache(client)
	ctx := context.Background()

	token := fmt.Sprintf("gone%d", time.Now().UnixNano())
	if err := sc.Touch(ctx, token, time.Now()); err != nil {
		t.Fatalf("Touch: unexpected error: %v", err)
	}
	// 对不存在的会话 Touch 不能造出无 TTL 的孤儿键
	n, err := client.Exists(ctx, sessionKey(token)).Result()
	if err != nil {
		t.Fatalf("Exists: unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("orphan key created by Touch on missing session")
	}
}

func TestSessionCacheCorruptHashIsMiss(t *testing.T) {
	client := newTestRedis(t)
	sc := NewSessionCache(client)
	ctx := context.Background()

	token := fmt.Sprintf("bad%d", time.Now().UnixNano())
	key := sessionKey(token)
	t.Cleanup(func() { client.Del(context.Background(), key) })

	if err := client.HSet(ctx, key, "user_id", "not-a-number").Err(); err != nil {
		t.Fatalf("HSet: unexpected error: %v", err)
	}

	_, ok, err := sc.Get(ctx, token)
	if err != nil {
		t.Fatalf("Get corrupt hash: unexpected error: %v", err)
	}
	if ok {
		t.Fatal("corrupt hash reported as hit")
	}
}
