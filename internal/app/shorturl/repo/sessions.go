package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nodca/shorturl/internal/app/shorturl/session"
)

// SessionsRepo 把 Postgres 的 sessions 表实现成 session.DurableStore。
// 这张表是会话的事实来源：Redis 副本丢了可以回源，这里丢了会话就没了。
type SessionsRepo struct {
	db *pgxpool.Pool
}

func NewSessionsRepo(db *pgxpool.Pool) *SessionsRepo {
	return &SessionsRepo{db: db}
}

func (r *SessionsRepo) Create(ctx context.Context, s session.Session) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.Exec(dbctx,
		"INSERT INTO sessions (token, user_id, created_at, last_active_at) VALUES ($1,$2,$3,$4)",
		s.Token, s.UserID, s.CreatedAt, s.LastActiveAt)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	return nil
}

func (r *SessionsRepo) FindByToken(ctx context.Context, token string) (session.Session, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var s session.Session
	err := r.db.
		QueryRow(dbctx, "SELECT token, user_id, created_at, last_active_at FROM sessions WHERE token=$1", token).
		Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Session{}, session.ErrSessionNotFound
		}
		slog.Error(err.Error())
		return session.Session{}, err
	}
	return s, nil
}

func (r *SessionsRepo) FindByUserID(ctx context.Context, userID int64) (session.Session, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var s session.Session
	err := r.db.
		QueryRow(dbctx, "SELECT token, user_id, created_at, last_active_at FROM sessions WHERE user_id=$1 LIMIT 1", userID).
		Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Session{}, session.ErrSessionNotFound
		}
		slog.Error(err.Error())
		return session.Session{}, err
	}
	return s, nil
}

func (r *SessionsRepo) UpdateLastActive(ctx context.Context, token string, lastActiveAt time.Time) error {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	_, err := r.db.Exec(dbctx, "UPDATE sessions SET last_active_at=$1 WHERE token=$2", lastActiveAt, token)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	return nil
}

func (r *SessionsRepo) DeleteByToken(ctx context.Context, token string) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.Exec(dbctx, "DELETE FROM sessions WHERE token=$1", token)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	return nil
}
