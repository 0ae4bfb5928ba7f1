package repo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var ErrUserNotFound = errors.New("user not found")
var ErrUserAlreadyExists = errors.New("email already registered")
var ErrInvalidEmail = errors.New("email is not allowed")
var ErrInvalidFullName = errors.New("full name is not allowed")
var ErrWeakPassword = errors.New("password does not meet strength rules")

type UsersRepo struct {
	db *pgxpool.Pool
}

func NewUsersRepo(db *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{db: db}
}

type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// normalizeEmail 统一成小写去空白的形式，唯一约束建立在这个形式上。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validatePassword 检查账号密码强度：8~40 位，含大小写字母、数字和
// !@#$%^&* 中的特殊字符，不允许空白字符。
func validatePassword(password string) error {
	if len(password) < 8 || len(password) > 40 {
		return ErrWeakPassword
	}
	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune("!@#$%^&*", r):
			hasSpecial = true
		case r == ' ' || r == '\t' || r == '\n':
			return ErrWeakPassword
		}
	}
	if !hasLower || !hasUpper || !hasDigit || !hasSpecial {
		return ErrWeakPassword
	}
	return nil
}

// Create 注册新用户，重复邮箱返回 ErrUserAlreadyExists。
func (u *UsersRepo) Create(ctx context.Context, email, fullName, password string) (int64, error) {
	email = normalizeEmail(email)
	if len(email) < 5 || len(email) > 64 || !strings.Contains(email, "@") {
		return -1, ErrInvalidEmail
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" || len(fullName) > 32 {
		return -1, ErrInvalidFullName
	}
	if err := validatePassword(password); err != nil {
		return -1, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error(err.Error())
		return -1, err
	}

	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	if err := u.db.
		QueryRow(dbctx, "INSERT INTO users (email, full_name, password_hash, role) VALUES ($1,$2,$3,'user') ON CONFLICT (email) DO NOTHING RETURNING id", email, fullName, string(passwordHash)).
		Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return -1, ErrUserAlreadyExists
		}
		slog.Error(err.Error())
		return -1, err
	}
	return id, nil
}

func (u *UsersRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	email = normalizeEmail(email)
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	row := u.db.QueryRow(dbctx, "SELECT id, email, full_name, password_hash, role, created_at FROM users WHERE email=$1 LIMIT 1", email)
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		slog.Error(err.Error())
		return User{}, err
	}
	return user, nil
}

func (u *UsersRepo) FindByID(ctx context.Context, id int64) (User, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	row := u.db.QueryRow(dbctx, "SELECT id, email, full_name, password_hash, role, created_at FROM users WHERE id=$1", id)
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		slog.Error(err.Error())
		return User{}, err
	}
	return user, nil
}

// RoleByUserID 给鉴权中间件用的轻量查询。
func (u *UsersRepo) RoleByUserID(ctx context.Context, id int64) (string, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var role string
	if err := u.db.QueryRow(dbctx, "SELECT role FROM users WHERE id=$1", id).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		slog.Error(err.Error())
		return "", err
	}
	return role, nil
}

func (u *UsersRepo) List(ctx context.Context, limit int) ([]User, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := u.db.Query(dbctx, "SELECT id, email, full_name, role, created_at FROM users ORDER BY id LIMIT $1", limit)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.FullName, &user.Role, &user.CreatedAt); err != nil {
			slog.Error(err.Error())
			return nil, err
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	return result, nil
}

// SetRole 变更用户角色。调用方负责吊销目标用户的会话，
// 角色本身每次请求现查，这里不用管生效时机。
func (u *UsersRepo) SetRole(ctx context.Context, id int64, role string) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var ok int
	if err := u.db.QueryRow(dbctx, "UPDATE users SET role=$1 WHERE id=$2 RETURNING 1", role, id).Scan(&ok); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		slog.Error(err.Error())
		return err
	}
	return nil
}

// Delete 删除用户。用户名下的短链保留并转为无主（user_id 置 NULL），
// 已发出去的短码不能因为账号注销而失效。
func (u *UsersRepo) Delete(ctx context.Context, id int64) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := u.db.Begin(dbctx)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	defer tx.Rollback(dbctx)

	if _, err := tx.Exec(dbctx, "UPDATE urls SET user_id=NULL WHERE user_id=$1", id); err != nil {
		slog.Error(err.Error())
		return err
	}

	var ok int
	if err := tx.QueryRow(dbctx, "DELETE FROM users WHERE id=$1 RETURNING 1", id).Scan(&ok); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		slog.Error(err.Error())
		return err
	}

	if err := tx.Commit(dbctx); err != nil {
		slog.Error(err.Error())
		return err
	}
	return nil
}
