package auth

import (
	"context"

	"github.com/huddleapp/huddle/internal/model"
)

type contextKey struct{}

type AuthContext struct {
	UserID    int64
	Role      string
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func Role(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.Role
}

// IsAdmin reports whether the caller may manage events. Super admins hold
// every admin capability.
func IsAdmin(ctx context.Context) bool {
	r := Role(ctx)
	return r == model.RoleAdmin || r == model.RoleSuperAdmin
}

func IsSuperAdmin(ctx context.Context) bool {
	return Role(ctx) == model.RoleSuperAdmin
}
