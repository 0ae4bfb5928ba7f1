package auth

import "context"

// Identity 是一次请求里已通过会话校验的访问者。
// Role 按需懒加载：普通接口只填 UserID，管理接口的角色检查再补 Role。
type Identity struct {
	UserID int64
	Role   string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	v := ctx.Value(identityKey{})
	id, ok := v.(Identity)
	return id, ok
}
