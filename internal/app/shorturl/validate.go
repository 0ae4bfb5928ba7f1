package shorturl

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrInvalidURL          = errors.New("invalid url")
	ErrInvalidAlias        = errors.New("invalid alias")
	ErrInvalidTitle        = errors.New("invalid title")
	ErrInvalidLinkPassword = errors.New("invalid link password")
)

// ValidateURL 校验待缩短的目标地址：必须是 http/https 且带主机名。
// 这里不做可达性探测，只挡明显不是 URL 的输入。
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

var aliasRe = regexp.MustCompile(`^[0-9A-Za-z]{3,32}$`)

// 与站点自身路由冲突的别名直接拒绝
var reservedAliases = map[string]struct{}{
	"api":     {},
	"healthz": {},
	"metrics": {},
	"favicon": {},
}

// ValidateAlias 校验自定义别名：仅字母数字、3~32 位，且不占用保留路径。
// 生成的短码天然满足这些规则，只有用户自选别名需要过这里。
func ValidateAlias(alias string) error {
	if !aliasRe.MatchString(alias) {
		return ErrInvalidAlias
	}
	if _, ok := reservedAliases[strings.ToLower(alias)]; ok {
		return ErrInvalidAlias
	}
	return nil
}

// ValidateTitle 校验短链标题：去掉首尾空白后 1~64 字节。
func ValidateTitle(title string) error {
	t := strings.TrimSpace(title)
	if t == "" || len(t) > 64 {
		return ErrInvalidTitle
	}
	return nil
}

var linkPasswordRe = regexp.MustCompile(`^[0-9A-Za-z]{5,20}$`)

// ValidateLinkPassword 校验短链访问口令：仅字母数字、5~20 位。
// 口令只是一道轻量的访问门槛，不套账号密码那套强度要求。
func ValidateLinkPassword(pw string) error {
	if !linkPasswordRe.MatchString(pw) {
		return ErrInvalidLinkPassword
	}
	return nil
}
