package clicks

import (
	"context"
	"log/slog"
	"time"

	"github.com/nodca/shorturl/internal/platform/metrics"
)

// DeltaCache 是增量计数的缓存端，Redis 实现见 Buffer。
type DeltaCache interface {
	Incr(ctx context.Context, code string) (int64, error)
	Pending(ctx context.Context, code string) (int64, error)
	Claim(ctx context.Context, code string) (int64, error)
	Restore(ctx context.Context, code string, delta int64) error
}

// DurableCounter 是累计计数的持久端，Postgres 实现见 repo.ClicksRepo。
// AddClicks 只做加法：同一份增量至多落库一次，总数就不会错。
type DurableCounter interface {
	AddClicks(ctx context.Context, code string, delta int64) error
	TotalClicks(ctx context.Context, code string) (int64, error)
}

// Recorder 拥有冲刷策略：每次记点击后看增量有没有跨过阈值，
// 跨过就领走整份增量累加进持久计数。
type Recorder struct {
	cache     DeltaCache
	durable   DurableCounter
	threshold int64
}

func NewRecorder(cache DeltaCache, durable DurableCounter, threshold int64) *Recorder {
	if threshold <= 0 {
		threshold = 5
	}
	return &Recorder{cache: cache, durable: durable, threshold: threshold}
}

// RecordClick 记一次点击。计数失败绝不影响触发它的跳转：
// 所有错误在这里记日志消化掉。缓存不可用时退化为直接给持久计数加一。
func (r *Recorder) RecordClick(ctx context.Context, code string) {
	delta, err := r.cache.Incr(ctx, code)
	if err != nil {
		slog.Warn("点击增量缓存不可用，降级为直写持久计数", "code", code, "err", err)
		if err := r.durable.AddClicks(ctx, code, 1); err != nil {
			slog.Error("点击计数丢失", "code", code, "err", err)
		}
		return
	}
	if delta < r.threshold {
		return
	}
	r.flush(code)
}

// flush 领取当前增量并落库。
// 刻意不继承请求的 context：客户端断开会取消请求上下文，
// 而增量一旦领走就只存在于本进程内存里，落库不能被打断。
func (r *Recorder) flush(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	claimed, err := r.cache.Claim(ctx, code)
	if err != nil {
		slog.Warn("领取点击增量失败", "code", code, "err", err)
		return
	}
	if claimed == 0 {
		// 并发冲刷，别人先领走了
		return
	}

	if err := r.durable.AddClicks(ctx, code, claimed); err != nil {
		metrics.ClickFlushesTotal.WithLabelValues("failed").Inc()
		slog.Error("点击增量落库失败，还回缓存等待重试", "code", code, "delta", claimed, "err", err)
		if err := r.cache.Restore(ctx, code, claimed); err != nil {
			slog.Error("点击增量还回失败，计数丢失", "code", code, "delta", claimed, "err", err)
		}
		return
	}
	metrics.ClickFlushesTotal.WithLabelValues("ok").Inc()
}

// TotalClicks 返回已持久化的累计点击数，不含未冲刷增量。
func (r *Recorder) TotalClicks(ctx context.Context, code string) (int64, error) {
	return r.durable.TotalClicks(ctx, code)
}

// PendingClicks 返回缓存里尚未冲刷的增量。
// 统计页把它和 TotalClicks 相加，拿到读己之写的总数。
func (r *Recorder) PendingClicks(ctx context.Context, code string) (int64, error) {
	return r.cache.Pending(ctx, code)
}
