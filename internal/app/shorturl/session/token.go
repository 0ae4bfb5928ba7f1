package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewToken 生成不透明会话令牌：32 字节加密随机数，URL 安全的 Base64。
// 令牌本身不编码任何信息，有效性完全由存储里的记录决定，
// 所以删掉记录就等于吊销。
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("生成会话令牌: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
