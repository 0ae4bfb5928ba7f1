package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nodca/shorturl/internal/app/shorturl"
	"github.com/nodca/shorturl/internal/app/shorturl/clicks"
	"github.com/nodca/shorturl/internal/app/shorturl/stats"
)

type fakeCreator struct {
	got    shorturl.CreateURLParams
	calls  int
	result shorturl.URL
	err    error
}

func (f *fakeCreator) Create(ctx context.Context, p shorturl.CreateURLParams) (shorturl.URL, error) {
	f.calls++
	f.got = p
	if f.err != nil {
		return shorturl.URL{}, f.err
	}
	return f.result, nil
}

type fakeResolver struct {
	urls      map[string]string
	protected map[string]bool
}

func (f *fakeResolver) Resolve(ctx context.Context, code string) (string, error) {
	if f.protected[code] {
		return "", shorturl.ErrURLProtected
	}
	if url, ok := f.urls[code]; ok {
		return url, nil
	}
	return "", shorturl.ErrURLNotFound
}

// 点击链路的内存桩，冲刷逻辑本身在 clicks 包测试里覆盖
type memDelta struct {
	pending map[string]int64
}

func newMemDelta() *memDelta { return &memDelta{pending: map[string]int64{}} }

func (m *memDelta) Incr(ctx context.Context, code string) (int64, error) {
	m.pending[code]++
	return m.pending[code], nil
}
func (m *memDelta) Pending(ctx context.Context, code string) (int64, error) {
	return m.pending[code], nil
}
func (m *memDelta) Claim(ctx context.Context, code string) (int64, error) {
	n := m.pending[code]
	delete(m.pending, code)
	return n, nil
}
func (m *memDelta) Restore(ctx context.Context, code string, delta int64) error {
	m.pending[code] += delta
	return nil
}

type memCounter struct {
	totals map[string]int64
}

func newMemCounter() *memCounter { return &memCounter{totals: map[string]int64{}} }

func (m *memCounter) AddClicks(ctx context.Context, code string, delta int64) error {
	m.totals[code] += delta
	return nil
}
func (m *memCounter) TotalClicks(ctx context.Context, code string) (int64, error) {
	return m.totals[code], nil
}

func TestCreateURLHandlerAnonymousDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	creator := &fakeCreator{result: shorturl.URL{
		Code:        "7Tk2xZ",
		OriginalURL: "https://go.dev/blog",
		Title:       "Go Blog",
		IsActive:    true,
		CreatedAt:   time.Now(),
	}}

	r := gin.New()
	r.POST("/urls", NewCreateURLHandler(creator))

	body := `{"original_url":"https://go.dev/blog","title":"Go Blog"}`
	req := httptest.NewRequest(http.MethodPost, "/urls", strings.NewReader(body))
	req.Host = "s.example.com"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d, body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if creator.got.UserID != nil {
		t.Fatalf("UserID: got %v, want nil (anonymous)", *creator.got.UserID)
	}
	if !creator.got.IsActive {
		t.Fatal("IsActive should default to true when omitted")
	}

	var res CreateURLResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Code != "7Tk2xZ" {
		t.Fatalf("code: got %q, want %q", res.Code, "7Tk2xZ")
	}
	if res.ShortURL != "http://s.example.com/7Tk2xZ" {
		t.Fatalf("short_url: got %q, want %q", res.ShortURL, "http://s.example.com/7Tk2xZ")
	}
}

func TestCreateURLHandlerRejectsBadInput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	creator := &fakeCreator{}
	r := gin.New()
	r.POST("/urls", NewCreateURLHandler(creator))

	bodies := []string{
		`{"original_url":"ftp://example.com/x","title":"t"}`,   // 协议不对
		`{"original_url":"https://go.dev","title":""}`,         // 标题为空
		`{"original_url":"https://go.dev","title":"t","custom_alias":"a"}`,    // 别名太短
		`{"original_url":"https://go.dev","title":"t","password":"短password"}`, // 口令带非法字符
	}
	for _, body := range bodies {
		req := httptest.NewRequest(http.MethodPost, "/urls", strings.NewReader(body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: got %d, want %d", body, rec.Code, http.StatusBadRequest)
		}
	}
	if creator.calls != 0 {
		t.Fatalf("creator called %d times on invalid input", creator.calls)
	}
}

func TestCreateURLHandlerAliasTaken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	creator := &fakeCreator{err: shorturl.ErrAliasTaken}
	r := gin.New()
	r.POST("/urls", NewCreateURLHandler(creator))

	body := `{"original_url":"https://go.dev","title":"t","custom_alias":"mylink"}`
	req := httptest.NewRequest(http.MethodPost, "/urls", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestRedirectHandlerCountsClick(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolver := &fakeResolver{urls: map[string]string{"abc123": "https://go.dev/doc"}}
	delta := newMemDelta()
	counter := newMemCounter()
	recorder := clicks.NewRecorder(delta, counter, 5)
	collector := stats.NewChannelCollector(8)

	r := gin.New()
	r.GET("/:code", NewRedirectHandler(resolver, recorder, collector))

	req := httptest.NewRequest(http.MethodGet, "/abc123", nil)
	req.Header.Set("Referer", "https://news.ycombinator.com/")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "https://go.dev/doc" {
		t.Fatalf("Location: got %q, want %q", loc, "https://go.dev/doc")
	}
	if delta.pending["abc123"] != 1 {
		t.Fatalf("pending clicks: got %d, want 1", delta.pending["abc123"])
	}

	select {
	case ev := <-collector.Events():
		if ev.Code != "abc123" {
			t.Fatalf("event code: got %q, want %q", ev.Code, "abc123")
		}
		if ev.Referer != "https://news.ycombinator.com/" {
			t.Fatalf("event referer: got %q", ev.Referer)
		}
	default:
		t.Fatal("no click event collected")
	}
}

func TestRedirectHandlerNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolver := &fakeResolver{urls: map[string]string{}}
	delta := newMemDelta()
	recorder := clicks.NewRecorder(delta, newMemCounter(), 5)
	collector := stats.NewChannelCollector(8)

	r := gin.New()
	r.GET("/:code", NewRedirectHandler(resolver, recorder, collector))

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	if len(delta.pending) != 0 {
		t.Fatal("missing code must not be counted")
	}
	select {
	case ev := <-collector.Events():
		t.Fatalf("unexpected click event: %+v", ev)
	default:
	}
}

func TestRedirectHandlerProtected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolver := &fakeResolver{protected: map[string]bool{"secret1": true}}
	delta := newMemDelta()
	recorder := clicks.NewRecorder(delta, newMemCounter(), 5)
	collector := stats.NewChannelCollector(8)

	r := gin.New()
	r.GET("/:code", NewRedirectHandler(resolver, recorder, collector))

	req := httptest.NewRequest(http.MethodGet, "/secret1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	// 解锁之前不算访问
	if len(delta.pending) != 0 {
		t.Fatal("protected redirect must not count clicks")
	}
}
