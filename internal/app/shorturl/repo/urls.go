package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nodca/shorturl/internal/app/shorturl"
	"github.com/nodca/shorturl/internal/app/shorturl/cache"
	"golang.org/x/crypto/bcrypt"
)

var ErrAlreadyDisabled = errors.New("url already disabled")

// UserURL 是“我的短链”列表里的一行，带上已持久化的点击数。
type UserURL struct {
	Code        string    `json:"code"`
	OriginalURL string    `json:"original_url"`
	Title       string    `json:"title"`
	IsActive    bool      `json:"is_active"`
	Protected   bool      `json:"protected"`
	TotalClicks int64     `json:"total_clicks"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClickEventRow 是点击明细的一行，ID 兼作下一页的游标。
type ClickEventRow struct {
	ID        int64     `json:"id"`
	ClickedAt time.Time `json:"clicked_at"`
	Referer   string    `json:"referer"`
	UserAgent string    `json:"user_agent"`
}

// URLsRepo 是短链的持久层，同时维护读路径外挂的缓存与布隆过滤器。
// 实现 shorturl.Creator 和 shorturl.Resolver。
type URLsRepo struct {
	db    *pgxpool.Pool
	cache *cache.URLCache
	bloom *cache.BloomFilter
	gen   *shorturl.Generator
}

func NewURLsRepo(db *pgxpool.Pool, urlCache *cache.URLCache, bloom *cache.BloomFilter, gen *shorturl.Generator) *URLsRepo {
	return &URLsRepo{
		db:    db,
		cache: urlCache,
		bloom: bloom,
		gen:   gen,
	}
}

// Create 生成（或采用自定义的）短码并落库。
// 传入 HTTP 请求的上下文 c.Request.Context()。
func (s *URLsRepo) Create(ctx context.Context, p shorturl.CreateURLParams) (shorturl.URL, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var passwordHash *string
	if p.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error(err.Error())
			return shorturl.URL{}, err
		}
		h := string(hash)
		passwordHash = &h
	}

	var code string
	var createdAt time.Time
	for attempt := 0; ; attempt++ {
		code = p.CustomAlias
		if code == "" {
			var err error
			code, err = s.gen.NewCode()
			if err != nil {
				slog.Error(err.Error())
				return shorturl.URL{}, err
			}
		}

		err := s.db.QueryRow(dbctx,
			"INSERT INTO urls (code, user_id, original_url, title, password_hash, is_active) VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at",
			code, p.UserID, p.OriginalURL, p.Title, passwordHash, p.IsActive,
		).Scan(&createdAt)
		if err == nil {
			break
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if p.CustomAlias != "" {
				return shorturl.URL{}, shorturl.ErrAliasTaken
			}
			// 发号器产出的码撞上了某个自定义别名，换个号重试
			if attempt < 2 {
				continue
			}
		}
		slog.Error(err.Error())
		return shorturl.URL{}, err
	}

	if s.bloom != nil {
		s.bloom.Add(code)
	}

	// 启用且未设口令的短链直接写缓存，顺带覆盖此前可能命中的负缓存；
	// 其余情况把可能存在的负缓存清掉，让读路径重新走数据库分支。
	if s.cache != nil {
		cacheCtx, cacheCancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cacheCancel()
		if p.IsActive && passwordHash == nil {
			_ = s.cache.Set(cacheCtx, code, p.OriginalURL)
		} else {
			_ = s.cache.Delete(cacheCtx, code)
		}
	}

	return shorturl.URL{
		Code:        code,
		OriginalURL: p.OriginalURL,
		Title:       p.Title,
		UserID:      p.UserID,
		IsActive:    p.IsActive,
		Protected:   passwordHash != nil,
		CreatedAt:   createdAt,
	}, nil
}

// Resolve 把短码换成目标地址，依次走 布隆过滤器 -> L1/L2 缓存 -> 数据库。
func (s *URLsRepo) Resolve(ctx context.Context, code string) (string, error) {
	// 一定不存在的码在这里就挡下，缓存都不用碰
	if s.bloom != nil && !s.bloom.MightExist(code) {
		return "", shorturl.ErrURLNotFound
	}

	if s.cache != nil {
		if url, _ := s.cache.Get(ctx, code); url != "" {
			if url == "__nil__" {
				return "", shorturl.ErrURLNotFound // 命中负缓存
			}
			return url, nil
		}
	}

	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	var url string
	var passwordHash string
	var isActive bool
	err := s.db.
		QueryRow(dbctx, "SELECT original_url, COALESCE(password_hash,''), is_active FROM urls WHERE code=$1", code).
		Scan(&url, &passwordHash, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if s.cache != nil {
				s.cache.SetNotFound(ctx, code)
			}
			return "", shorturl.ErrURLNotFound
		}
		slog.Error(err.Error())
		return "", err
	}

	if !isActive {
		// 停用的码对外等同不存在；负缓存 TTL 很短，重新启用后很快恢复
		if s.cache != nil {
			s.cache.SetNotFound(ctx, code)
		}
		return "", shorturl.ErrURLNotFound
	}
	if passwordHash != "" {
		// 带口令的短链不进缓存，解锁必须走数据库里的哈希
		return "", shorturl.ErrURLProtected
	}

	if s.cache != nil {
		s.cache.Set(ctx, code, url)
	}
	return url, nil
}

// Unlock 校验访问口令并返回目标地址。对没设口令的短链幂等放行。
func (s *URLsRepo) Unlock(ctx context.Context, code, password string) (string, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var url string
	var passwordHash string
	var isActive bool
	err := s.db.
		QueryRow(dbctx, "SELECT original_url, COALESCE(password_hash,''), is_active FROM urls WHERE code=$1", code).
		Scan(&url, &passwordHash, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shorturl.ErrURLNotFound
		}
		slog.Error(err.Error())
		return "", err
	}
	if !isActive {
		return "", shorturl.ErrURLNotFound
	}
	if passwordHash == "" {
		return url, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return "", shorturl.ErrWrongLinkPassword
	}
	return url, nil
}

func (s *URLsRepo) FindByCode(ctx context.Context, code string) (shorturl.URL, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var u shorturl.URL
	var passwordHash *string
	err := s.db.
		QueryRow(dbctx, "SELECT code, user_id, original_url, title, password_hash, is_active, created_at FROM urls WHERE code=$1", code).
		Scan(&u.Code, &u.UserID, &u.OriginalURL, &u.Title, &passwordHash, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shorturl.URL{}, shorturl.ErrURLNotFound
		}
		slog.Error(err.Error())
		return shorturl.URL{}, err
	}
	u.Protected = passwordHash != nil && *passwordHash != ""
	return u, nil
}

func (s *URLsRepo) ListByUserID(ctx context.Context, userID int64, limit int) ([]UserURL, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := s.db.Query(dbctx, `
		SELECT u.code, u.original_url, u.title, u.is_active,
		       u.password_hash IS NOT NULL AS protected,
		       COALESCE(c.total_clicks, 0), u.created_at
		FROM urls u
		LEFT JOIN url_clicks c ON c.code = u.code
		WHERE u.user_id = $1
		ORDER BY u.created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	defer rows.Close()

	var result []UserURL
	for rows.Next() {
		var item UserURL
		if err := rows.Scan(&item.Code, &item.OriginalURL, &item.Title, &item.IsActive, &item.Protected, &item.TotalClicks, &item.CreatedAt); err != nil {
			slog.Error(err.Error())
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	return result, nil
}

func (s *URLsRepo) UserOwnsURL(ctx context.Context, userID int64, code string) (bool, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var exists bool
	err := s.db.QueryRow(dbctx,
		"SELECT EXISTS(SELECT 1 FROM urls WHERE code=$1 AND user_id=$2)", code, userID).Scan(&exists)
	if err != nil {
		slog.Error(err.Error())
		return false, err
	}
	return exists, nil
}

// SetActive 启用/停用自己的短链。码不存在或不属于该用户都按未找到处理，
// 不向调用方泄露“码存在但不是你的”。
func (s *URLsRepo) SetActive(ctx context.Context, code string, userID int64, active bool) error {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var ok int
	err := s.db.QueryRow(dbctx,
		"UPDATE urls SET is_active=$1 WHERE code=$2 AND user_id=$3 RETURNING 1", active, code, userID).Scan(&ok)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shorturl.ErrURLNotFound
		}
		slog.Error(err.Error())
		return err
	}
	if s.cache != nil {
		s.cache.Delete(ctx, code)
	}
	return nil
}

// DisableByCode 是管理端的强制下线，不看归属。
func (s *URLsRepo) DisableByCode(ctx context.Context, code string) error {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var ok int
	err := s.db.QueryRow(dbctx,
		"UPDATE urls SET is_active=false WHERE code=$1 AND is_active=true RETURNING 1", code).Scan(&ok)
	if err == nil {
		if s.cache != nil {
			s.cache.Delete(ctx, code)
		}
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		slog.Error(err.Error())
		return err
	}

	// 没更新到行：要么不存在，要么本来就停着
	var isActive bool
	if err := s.db.QueryRow(dbctx, "SELECT is_active FROM urls WHERE code=$1", code).Scan(&isActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shorturl.ErrURLNotFound
		}
		slog.Error(err.Error())
		return err
	}
	if !isActive {
		return ErrAlreadyDisabled
	}
	return errors.New("url disable failed")
}

// Delete 删除自己的短链，连同累计点击数。
// 点击明细（click_events）是只追加的审计流水，留给离线清理。
func (s *URLsRepo) Delete(ctx context.Context, code string, userID int64) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := s.db.Begin(dbctx)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	defer tx.Rollback(dbctx) // 提交成功后 rollback 无效，可忽略

	var ok int
	err = tx.QueryRow(dbctx,
		"DELETE FROM urls WHERE code=$1 AND user_id=$2 RETURNING 1", code, userID).Scan(&ok)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shorturl.ErrURLNotFound
		}
		slog.Error(err.Error())
		return err
	}
	if _, err := tx.Exec(dbctx, "DELETE FROM url_clicks WHERE code=$1", code); err != nil {
		slog.Error(err.Error())
		return err
	}
	if err := tx.Commit(dbctx); err != nil {
		slog.Error(err.Error())
		return err
	}

	if s.cache != nil {
		s.cache.Delete(ctx, code)
	}
	// 布隆过滤器不支持删除，残留的位由数据库未命中加负缓存兜底
	return nil
}

// ListClickEvents 按 id 倒序翻页返回点击明细。cursor 为 0 表示第一页。
func (s *URLsRepo) ListClickEvents(ctx context.Context, code string, limit int, cursor int64) ([]ClickEventRow, *int64, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rows pgx.Rows
	var err error
	if cursor == 0 {
		rows, err = s.db.Query(dbctx,
			"SELECT id, clicked_at, referer, user_agent FROM click_events WHERE code=$1 ORDER BY id DESC LIMIT $2", code, limit)
	} else {
		rows, err = s.db.Query(dbctx,
			"SELECT id, clicked_at, referer, user_agent FROM click_events WHERE code=$1 AND id<$2 ORDER BY id DESC LIMIT $3", code, cursor, limit)
	}
	if err != nil {
		slog.Error(err.Error())
		return nil, nil, err
	}
	defer rows.Close()

	var events []ClickEventRow
	for rows.Next() {
		var item ClickEventRow
		if err := rows.Scan(&item.ID, &item.ClickedAt, &item.Referer, &item.UserAgent); err != nil {
			slog.Error(err.Error())
			return nil, nil, err
		}
		events = append(events, item)
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return nil, nil, err
	}

	var nextCursor *int64
	if len(events) == limit {
		nextCursor = &events[len(events)-1].ID
	}
	return events, nextCursor, nil
}

// WarmBloom 启动时把已有短码灌进布隆过滤器。
func (s *URLsRepo) WarmBloom(ctx context.Context) (int, error) {
	if s.bloom == nil {
		return 0, nil
	}

	dbctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.db.Query(dbctx, "SELECT code FROM urls")
	if err != nil {
		slog.Error(err.Error())
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			slog.Error(err.Error())
			return count, err
		}
		s.bloom.Add(code)
		count++
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return count, err
	}
	return count, nil
}
