package middleware_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopguard/internal/audit"
	"kopguard/internal/platform/config"
	rlmiddleware "kopguard/internal/ratelimit/middleware"
	"kopguard/internal/ratelimit/models"
	"kopguard/internal/ratelimit/service"
	"kopguard/internal/ratelimit/store/memory"
	"kopguard/pkg/platform/middleware/metadata"
)

type nopSink struct{}

func (nopSink) LogSecurityEvent(context.Context, audit.SecurityEvent) {}

func testLimits() config.RateLimits {
	return config.RateLimits{
		General: config.LimitRule{MaxRequests: 100, Window: time.Minute},
		Auth:    config.LimitRule{MaxRequests: 5, Window: 60 * time.Second},
		Admin:   config.LimitRule{MaxRequests: 30, Window: time.Minute},
		Upload:  config.LimitRule{MaxRequests: 2, Window: time.Minute},
	}
}

func newStack(t *testing.T, class models.Class) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	limiter := service.New(memory.NewInMemoryCounterStore(), nopSink{}, logger)
	mw := rlmiddleware.New(limiter, testLimits(), logger)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler = mw.Limit(class)(handler)
	// Client metadata runs first in the real chain; the limiter keys off it.
	return metadata.ClientMetadata(handler)
}

func do(handler http.Handler, method, target, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("X-Real-IP", ip)
	req.Header.Set("User-Agent", "kopguard-test/1.0")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// Five failed logins fill the auth budget; the sixth is locked out with a
// usable Retry-After.
func TestLoginLockoutAfterFiveAttempts(t *testing.T) {
	handler := newStack(t, models.ClassAuth)

	for i := 1; i <= 5; i++ {
		rec := do(handler, http.MethodPost, "/api/v1/auth/login", "203.0.113.9")
		require.Equal(t, http.StatusOK, rec.Code, "attempt %d", i)
		assert.Equal(t, strconv.Itoa(5-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := do(handler, http.MethodPost, "/api/v1/auth/login", "203.0.113.9")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	assert.NotEmpty(t, body["error"])

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)
	assert.LessOrEqual(t, retryAfter, 60)

	// Another client is unaffected.
	rec = do(handler, http.MethodPost, "/api/v1/auth/login", "198.51.100.4")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHeadersOnAllowedRequests(t *testing.T) {
	handler := newStack(t, models.ClassGeneral)

	rec := do(handler, http.MethodGet, "/api/v1/products", "203.0.113.9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))

	reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.Greater(t, reset, time.Now().Unix())
}

func TestUploadBucketsPerPath(t *testing.T) {
	handler := newStack(t, models.ClassUpload)

	for range 2 {
		rec := do(handler, http.MethodPost, "/api/v1/waste/import", "203.0.113.9")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(handler, http.MethodPost, "/api/v1/waste/import", "203.0.113.9")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different path has its own budget.
	rec = do(handler, http.MethodPost, "/api/v1/members/import", "203.0.113.9")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDisabledMiddlewarePassesEverything(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	limiter := service.New(memory.NewInMemoryCounterStore(), nopSink{}, logger)
	mw := rlmiddleware.New(limiter, testLimits(), logger, rlmiddleware.WithDisabled(true))

	handler := metadata.ClientMetadata(mw.Limit(models.ClassAuth)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	for range 20 {
		rec := do(handler, http.MethodPost, "/api/v1/auth/login", "203.0.113.9")
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
