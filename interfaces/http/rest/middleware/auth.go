package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"path-backend/pkg/auth"
	pkgerrors "path-backend/pkg/errors"
)

// Headers set by the Lambda entry point once API Gateway has authorized the
// request
const (
	HeaderGatewayAuthorized = "X-API-Gateway-Authorized"
	HeaderUserID            = "X-User-ID"
	HeaderUserEmail         = "X-User-Email"
	HeaderUserRoles         = "X-User-Roles"
)

// AuthConfig configures the authentication middleware
type AuthConfig struct {
	// Validator checks bearer tokens. Required unless TrustGateway is set.
	Validator *auth.JWTValidator
	// TrustGateway accepts the identity headers injected behind API Gateway
	TrustGateway bool
	// Optional limiters; nil disables the check
	IPLimiter   *auth.PrefixedLimiter
	UserLimiter *auth.PrefixedLimiter
	Errors      *pkgerrors.ErrorHandler
	Logger      *zap.Logger
}

// Authenticate resolves the caller's identity and stores it in the request
// context. Requests without a valid identity are rejected with 401.
func Authenticate(cfg AuthConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			if !allow(w, r, cfg, cfg.IPLimiter, clientIP, "Rate limit exceeded") {
				return
			}

			user, err := resolveUser(r, cfg)
			if err != nil {
				cfg.Logger.Warn("Authentication failed",
					zap.Error(err),
					zap.String("ip", clientIP),
					zap.String("path", r.URL.Path),
				)
				cfg.Errors.Handle(w, r, pkgerrors.NewUnauthorizedError(unauthorizedMessage(err)))
				return
			}

			if !allow(w, r, cfg, cfg.UserLimiter, user.UserID, "User rate limit exceeded") {
				return
			}

			cfg.Logger.Debug("Request authenticated",
				zap.String("user_id", user.UserID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), user)))
		})
	}
}

func resolveUser(r *http.Request, cfg AuthConfig) (*auth.UserContext, error) {
	if cfg.TrustGateway && r.Header.Get(HeaderGatewayAuthorized) == "true" {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			return nil, errors.New("missing user context from API Gateway")
		}
		roles := []string{"authenticated"}
		if raw := r.Header.Get(HeaderUserRoles); raw != "" {
			roles = strings.Split(raw, ",")
		}
		return &auth.UserContext{UserID: userID, Email: r.Header.Get(HeaderUserEmail), Roles: roles}, nil
	}

	if cfg.Validator == nil {
		return nil, errors.New("request not authorized by API Gateway")
	}
	token := extractToken(r)
	if token == "" {
		return nil, auth.ErrMissingToken
	}
	claims, err := cfg.Validator.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &auth.UserContext{UserID: claims.UserID, Email: claims.Email, Roles: claims.Roles}, nil
}

func allow(w http.ResponseWriter, r *http.Request, cfg AuthConfig, limiter *auth.PrefixedLimiter, key, message string) bool {
	if limiter == nil {
		return true
	}
	allowed, err := limiter.Allow(r.Context(), key)
	if err != nil {
		// A broken limiter backend must not take the API down
		cfg.Logger.Error("Rate limiter error", zap.Error(err))
		return true
	}
	if !allowed {
		cfg.Errors.HandleStatus(w, r, http.StatusTooManyRequests, message)
		return false
	}
	return true
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "Invalid token signature"
	case errors.Is(err, auth.ErrMissingToken):
		return "Missing authentication token"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims):
		return "Invalid token"
	default:
		return "Unauthorized"
	}
}

// extractToken reads the bearer token from the Authorization header or the
// auth_token cookie
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
