package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"path-backend/pkg/auth"
	pkgerrors "path-backend/pkg/errors"
)

func echoUser(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(auth.UserID(r.Context())))
}

func TestAuthenticate_TrustedGateway(t *testing.T) {
	logger := zap.NewNop()
	handler := Authenticate(AuthConfig{
		TrustGateway: true,
		Errors:       pkgerrors.NewErrorHandler(logger, false),
		Logger:       logger,
	})(http.HandlerFunc(echoUser))

	t.Run("identity from headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderGatewayAuthorized, "true")
		req.Header.Set(HeaderUserID, "user-1")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("missing user id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderGatewayAuthorized, "true")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("not authorized by gateway", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthenticate_RateLimits(t *testing.T) {
	logger := zap.NewNop()
	limiter := auth.NewSlidingWindowLimiter(2, time.Minute)
	handler := Authenticate(AuthConfig{
		TrustGateway: true,
		IPLimiter:    auth.NewIPRateLimiter(limiter),
		UserLimiter:  auth.NewUserRateLimiter(auth.NewSlidingWindowLimiter(1, time.Minute)),
		Errors:       pkgerrors.NewErrorHandler(logger, false),
		Logger:       logger,
	})(http.HandlerFunc(echoUser))

	request := func(ip, user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":4321"
		req.Header.Set(HeaderGatewayAuthorized, "true")
		req.Header.Set(HeaderUserID, user)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1", "user-1"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1", "user-1"), "user limit")
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1", "user-2"), "ip limit")
	assert.Equal(t, http.StatusOK, request("10.0.0.2", "user-2"))
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{name: "bearer", header: "Bearer abc", want: "abc"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "wrong scheme", header: "Basic abc", want: ""},
		{name: "cookie", cookie: "xyz", want: "xyz"},
		{name: "none", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.cookie})
			}
			assert.Equal(t, tt.want, extractToken(req))
		})
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", getClientIP(req))
}
