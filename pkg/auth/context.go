package auth

import (
	"context"
	"errors"
)

// UserContext is the authenticated editor attached to a request.
type UserContext struct {
	UserID string
	Email  string
	Roles  []string
}

type userKey struct{}

// SetUserInContext attaches user to ctx.
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// GetUserFromContext returns the editor attached by SetUserInContext.
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	if user, ok := ctx.Value(userKey{}).(*UserContext); ok && user != nil {
		return user, nil
	}
	return nil, errors.New("no authenticated user in context")
}

// UserID returns the authenticated editor id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if user, err := GetUserFromContext(ctx); err == nil {
		return user.UserID
	}
	return ""
}
