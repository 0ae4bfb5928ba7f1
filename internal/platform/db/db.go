// Package db 负责创建 Postgres 连接池。
package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New 按 DSN 建连接池。只建不探活，调用方自己 Ping 并负责 Close。
func New(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}
