package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Consumer 从 ChannelCollector 里批量消费事件写入 click_events。
// 攒满 batchSize 或到达 interval 就落一批，停机时把余量清掉。
type Consumer struct {
	db        *pgxpool.Pool
	collector *ChannelCollector
	batchSize int
	interval  time.Duration
}

func NewConsumer(db *pgxpool.Pool, collector *ChannelCollector) *Consumer {
	return &Consumer{
		db:        db,
		collector: collector,
		batchSize: 100,
		interval:  time.Second,
	}
}

// Run 阻塞消费，直到 ctx 取消或收集器关闭。
func (c *Consumer) Run(ctx context.Context) {
	batch := make([]ClickEvent, 0, c.batchSize)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			insertEvents(c.db, batch)
			return
		case event, ok := <-c.collector.Events():
			if !ok {
				insertEvents(c.db, batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= c.batchSize {
				insertEvents(c.db, batch)
				batch = batch[:0] // 清空但保留容量，避免反复分配
			}
		case <-ticker.C:
			if len(batch) > 0 {
				insertEvents(c.db, batch)
				batch = batch[:0]
			}
		}
	}
}

// insertEvents 把一批事件写进 click_events。
// 只写明细不动计数，点击总数由增量缓冲那条通路负责。
// 刻意用独立的超时上下文：停机路径也要把已收的事件落掉。
func insertEvents(db *pgxpool.Pool, batch []ClickEvent) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := db.Begin(ctx)
	if err != nil {
		slog.Error("click events: begin tx failed", "err", err)
		return
	}
	defer tx.Rollback(context.Background())

	for _, e := range batch {
		if _, err := tx.Exec(ctx,
			`INSERT INTO click_events (code, clicked_at, ip, user_agent, referer) VALUES ($1,$2,$3,$4,$5)`,
			e.Code, e.ClickedAt, e.IP, e.UserAgent, e.Referer); err != nil {
			slog.Error("click events: insert failed", "err", err, "code", e.Code)
			continue
		}
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("click events: commit failed", "err", err)
	} else {
		slog.Debug("click events: flushed", "count", len(batch))
	}
}
