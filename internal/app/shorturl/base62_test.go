package shorturl

import (
	"errors"
	"math"
	"testing"
)

func TestBase62KnownValues(t *testing.T) {
	cases := []struct {
		n    uint64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{9, "9"},
		{10, "A"},
		{35, "Z"},
		{36, "a"},
		{61, "z"},
		{62, "10"},
		{124, "20"},
		{3843, "zz"},
		{3844, "100"},
		{238327, "zzz"},
	}
	for _, tc := range cases {
		if got := EncodeBase62(tc.n); got != tc.want {
			t.Fatalf("EncodeBase62(%d): got %q, want %q", tc.n, got, tc.want)
		}
		back, err := DecodeBase62(tc.want)
		if err != nil {
			t.Fatalf("DecodeBase62(%q): unexpected error: %v", tc.want, err)
		}
		if back != tc.n {
			t.Fatalf("DecodeBase62(%q): got %d, want %d", tc.want, back, tc.n)
		}
	}
}

func TestBase62RoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 61, 62, 63, 3843, 3844,
		1 << 22, 1<<41 - 1, 1 << 41,
		math.MaxInt64, math.MaxUint64,
	}
	for _, n := range values {
		s := EncodeBase62(n)
		back, err := DecodeBase62(s)
		if err != nil {
			t.Fatalf("DecodeBase62(%q): unexpected error: %v", s, err)
		}
		if back != n {
			t.Fatalf("round trip %d: got %d via %q", n, back, s)
		}
	}
}

func TestBase62EncodeLength(t *testing.T) {
	// uint64 最大值编码后不超过 11 个字符
	if got := len(EncodeBase62(math.MaxUint64)); got != 11 {
		t.Fatalf("len(EncodeBase62(MaxUint64)): got %d, want 11", got)
	}
}

func TestBase62DecodeInvalid(t *testing.T) {
	inputs := []string{
		"", "abc!", "has space", "under_score", "-1", "短码", "abc*def",
		"zzzzzzzzzzzz", // 12 个字符必然超出 uint64
	}
	for _, s := range inputs {
		if _, err := DecodeBase62(s); !errors.Is(err, ErrInvalidEncoding) {
			t.Fatalf("DecodeBase62(%q): got %v, want ErrInvalidEncoding", s, err)
		}
	}
}

func TestBase62PreservesOrderWithinLength(t *testing.T) {
	// 字符表按数值递增排列，等长短码的字典序 == 数值序。
	// 雪花 ID 单调递增，短码因此大致按创建时间排序。
	prev := EncodeBase62(3844) // "100"，三字符段的起点
	for n := uint64(3845); n < 3945; n++ {
		cur := EncodeBase62(n)
		if !(prev < cur) {
			t.Fatalf("order broken: EncodeBase62(%d)=%q !< EncodeBase62(%d)=%q", n-1, prev, n, cur)
		}
		prev = cur
	}
}
