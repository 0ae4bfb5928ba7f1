package shorturl

import "errors"

// Base62 负责 64 位整数与短码字符串之间的互转。
//
// 字符表按数值递增排列：数字、大写字母、小写字母。
// 字符表是持久化格式的一部分：上线后不可更换、不可调序，
// 否则已发出去的短码将解不回原来的 ID。
const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ErrInvalidEncoding 表示输入不是合法的 Base62 短码（为空或含字符表外的字符）。
var ErrInvalidEncoding = errors.New("invalid base62 encoding")

// base62Values 把字符映射回数值，查不到即非法字符。
var base62Values = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(base62Alphabet); i++ {
		t[base62Alphabet[i]] = int8(i)
	}
	return t
}()

// EncodeBase62 把非负整数编码成最短的 Base62 串。
// 0 编码为 "0"；其余值无前导填充。
func EncodeBase62(n uint64) string {
	if n == 0 {
		return "0"
	}
	// 62^10 < 2^64 < 62^11，uint64 最长 11 个字符
	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base62Alphabet[n%62]
		n /= 62
	}
	return string(buf[i:])
}

// DecodeBase62 把 Base62 串还原为整数。
// 解码是编码的精确逆运算；任何非法输入返回 ErrInvalidEncoding，
// 超出 uint64 表示范围的串同样视为非法而不是静默回绕。
func DecodeBase62(s string) (uint64, error) {
	if s == "" {
		return 0, ErrInvalidEncoding
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		v := base62Values[s[i]]
		if v < 0 {
			return 0, ErrInvalidEncoding
		}
		if n > (^uint64(0)-uint64(v))/62 {
			return 0, ErrInvalidEncoding
		}
		n = n*62 + uint64(v)
	}
	return n, nil
}
