package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/quickshare/service/internal/logging"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestBasicAuth(t *testing.T) {
	tests := []struct {
		name       string
		setAuth    bool
		user, pass string
		wantStatus int
		wantCalled bool
	}{
		{"no credentials", false, "", "", http.StatusUnauthorized, false},
		{"wrong password", true, "admin", "nope", http.StatusUnauthorized, false},
		{"wrong user", true, "root", "secret", http.StatusUnauthorized, false},
		{"empty credentials", true, "", "", http.StatusUnauthorized, false},
		{"valid", true, "admin", "secret", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := BasicAuth("admin", "secret", "")(okHandler(&called))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="Secure Area"`, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestBasicAuth_MalformedHeader(t *testing.T) {
	called := false
	h := BasicAuth("admin", "secret", "files")(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="files"`, rec.Header().Get("WWW-Authenticate"))
	assert.False(t, called)
}

func TestRateLimiter(t *testing.T) {
	called := false
	h := NewRateLimiter(0.001, 2).Handler(okHandler(&called))

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1111"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:3333"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1111"), "other clients have their own bucket")
}

func TestRateLimiter_Disabled(t *testing.T) {
	called := false
	next := okHandler(&called)
	h := NewRateLimiter(0, 1).Handler(next)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	var scoped *zap.Logger
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = logging.FromContext(r.Context(), nil)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})
	h := chiMiddleware.RequestID(Logger(log)(inner))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/file/x", nil))

	require.NotNil(t, scoped)
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/file/x", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, len("short and stout"), fields["bytes"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestBasicAuth_RejectionLogOmitsUsername(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var called bool
	h := BasicAuth("admin", "secret", "")(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("hunter2-typed-here", "secret")
	req = req.WithContext(logging.WithContext(req.Context(), zap.New(core)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)

	entries := logs.FilterMessage("basic auth rejected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/", fields["path"])
	for key, value := range fields {
		assert.NotContains(t, fmt.Sprint(value), "hunter2", "field %q leaks the submitted username", key)
	}
}
