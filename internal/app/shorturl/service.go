package shorturl

import (
	"context"
	"errors"
	"time"
)

// URL 是短链的领域对象，只携带业务字段，
// 不掺 HTTP 状态码、SQL 列名这类传输/存储细节。
type URL struct {
	Code        string
	OriginalURL string
	Title       string
	// UserID 为 nil 表示匿名创建
	UserID    *int64
	IsActive  bool
	Protected bool
	CreatedAt time.Time
}

var (
	// ErrURLNotFound：短码不存在或已停用，对外一律表现为 404。
	ErrURLNotFound = errors.New("url not found")
	// ErrURLProtected：短码设置了访问口令，需要先解锁。
	ErrURLProtected = errors.New("url is password protected")
	// ErrWrongLinkPassword：解锁口令不对。
	ErrWrongLinkPassword = errors.New("wrong link password")
	// ErrAliasTaken：自定义别名已被占用。
	ErrAliasTaken = errors.New("alias already taken")
)

// CreateURLParams 是创建短链的入参。
// CustomAlias 为空时短码由雪花发号器生成。
type CreateURLParams struct {
	UserID      *int64
	OriginalURL string
	Title       string
	CustomAlias string
	// Password 为空表示不设口令
	Password string
	IsActive bool
}

// Creator 表示“创建短链”这个用例。
// HTTP 层只依赖接口，方便在 handler 测试里替换成桩实现。
type Creator interface {
	Create(ctx context.Context, p CreateURLParams) (URL, error)
}

// Resolver 表示“短码换目标地址”这个用例，是全站最热的读路径，
// 实现里叠了 L1/L2 缓存、负缓存和布隆过滤。
// 短码不存在或已停用返回 ErrURLNotFound；带口令的短码返回 ErrURLProtected。
type Resolver interface {
	Resolve(ctx context.Context, code string) (string, error)
}
