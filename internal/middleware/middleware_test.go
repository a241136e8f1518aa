package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pod-kiosk/internal/config"
	"github.com/iliyamo/pod-kiosk/internal/utils"
)

const testSecret = "test-secret"

func authed(t *testing.T, clock clockwork.Clock, header string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/kiosk/session", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := DeviceAuth(testSecret, clock)(RequireLocation("loc-1")(func(c echo.Context) error {
		return c.String(http.StatusOK, DeviceID(c))
	}))
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	return rec, c
}

func TestDeviceAuth(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	good, err := utils.NewDeviceToken(testSecret, "kiosk-3", "loc-1", time.Hour, clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	elsewhere, err := utils.NewDeviceToken(testSecret, "kiosk-9", "loc-2", time.Hour, clock.Now())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + good.Token, http.StatusOK, "kiosk-3"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"tampered", "Bearer " + good.Token + "x", http.StatusUnauthorized, ""},
		{"other location", "Bearer " + elsewhere.Token, http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := authed(t, clock, tt.header)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Fatalf("body = %q", rec.Body.String())
			}
		})
	}

	clock.Advance(2 * time.Hour)
	if rec, _ := authed(t, clock, "Bearer "+good.Token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token accepted: %d", rec.Code)
	}
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/devices/token", nil)
	req.Header.Set("X-Real-IP", "10.0.0.5")
	req.Header.Set("X-Device-ID", "kiosk-3")
	c := e.NewContext(req, httptest.NewRecorder())

	tests := []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:10.0.0.5"},
		{"device", "rl:device:kiosk-3"},
		{"ip_device", "rl:ip:10.0.0.5:device:kiosk-3"},
		{"", "rl:ip:10.0.0.5:device:kiosk-3"},
	}
	for _, tt := range tests {
		cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: tt.strategy}
		if got := rateKey(cfg, c); got != tt.want {
			t.Errorf("rateKey(%q) = %q, want %q", tt.strategy, got, tt.want)
		}
	}

	c.Set(ctxDeviceID, "kiosk-7")
	if got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "device"}, c); got != "rl:device:kiosk-7" {
		t.Errorf("authenticated device ignored: %q", got)
	}
}

func TestParseBucketResult(t *testing.T) {
	res, err := parseBucketResult([]interface{}{int64(0), int64(0), int64(4200)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.RetryMs != 4200 {
		t.Fatalf("res = %+v", res)
	}
	if _, err := parseBucketResult("OK"); err == nil {
		t.Fatal("expected error for malformed reply")
	}
}

func TestMiddlewarePassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	calls := 0
	h := MenuCache(config.CacheConfig{Enabled: true, Methods: []string{"GET"}}, nil)(
		RateLimit(config.RateLimitConfig{Enabled: true}, nil, nil)(func(c echo.Context) error {
			calls++
			return c.NoContent(http.StatusNoContent)
		}))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/kiosk/menu", nil), rec)); err != nil {
			t.Fatal(err)
		}
		if rec.Header().Get("X-Cache") != "" {
			t.Fatal("cache header set with caching off")
		}
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestMenuCacheKeyByLocale(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "menu"}
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/kiosk/menu")
		return menuCacheKey(cfg, c)
	}
	if key("/v1/kiosk/menu?locale=en") == key("/v1/kiosk/menu?locale=ja") {
		t.Fatal("locales share a cache entry")
	}
	if key("/v1/kiosk/menu?locale=en&x=1") != key("/v1/kiosk/menu?x=1&locale=en") {
		t.Fatal("query order changes the key")
	}
}

func TestBodyRecorderLimit(t *testing.T) {
	rec := &bodyRecorder{ResponseWriter: httptest.NewRecorder(), limit: 4}
	_, _ = rec.Write([]byte("abc"))
	if rec.truncated {
		t.Fatal("truncated early")
	}
	_, _ = rec.Write([]byte("de"))
	if !rec.truncated || rec.buf.Len() != 0 {
		t.Fatalf("truncated=%v len=%d", rec.truncated, rec.buf.Len())
	}
}
