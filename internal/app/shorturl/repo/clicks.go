package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClicksRepo 把 url_clicks 表实现成 clicks.DurableCounter。
// 表里只有单调累加的总数，增量合并交给 upsert 的加法完成。
type ClicksRepo struct {
	db *pgxpool.Pool
}

func NewClicksRepo(db *pgxpool.Pool) *ClicksRepo {
	return &ClicksRepo{db: db}
}

// AddClicks 把 delta 累加进 code 的持久总数，行不存在时从 0 建行。
// 纯加法保证冲刷乱序到达也不会把总数算错。
func (r *ClicksRepo) AddClicks(ctx context.Context, code string, delta int64) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.Exec(dbctx, `
		INSERT INTO url_clicks (code, total_clicks) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET total_clicks = url_clicks.total_clicks + EXCLUDED.total_clicks`,
		code, delta)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	return nil
}

// TotalClicks 返回已持久化的总数，没有记录视为 0。
func (r *ClicksRepo) TotalClicks(ctx context.Context, code string) (int64, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var total int64
	err := r.db.QueryRow(dbctx, "SELECT total_clicks FROM url_clicks WHERE code=$1", code).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		slog.Error(err.Error())
		return 0, err
	}
	return total, nil
}
