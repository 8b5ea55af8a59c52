package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
)

type ctxKey string

const (
	ctxUserID ctxKey = "user_id"
	ctxRole   ctxKey = "role"
)

// WithUserID seeds the context with an authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole seeds the context with the authenticated role.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxRole, role)
}

// UserIDFrom returns the authenticated user id seeded by Auth.
func UserIDFrom(ctx context.Context) (uuid.UUID, bool) {
	raw, ok := ctx.Value(ctxUserID).(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// RoleFrom returns the authenticated role seeded by Auth.
func RoleFrom(ctx context.Context) (enums.Role, bool) {
	raw, ok := ctx.Value(ctxRole).(string)
	if !ok {
		return "", false
	}
	role := enums.Role(raw)
	if !role.IsValid() {
		return "", false
	}
	return role, true
}
