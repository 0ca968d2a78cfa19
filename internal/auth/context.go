package auth

import (
	"context"
	"errors"

	"tenant-dashboard/internal/session"
)

type ctxKey int

const ctxIdentity ctxKey = iota

// WithIdentity stores the resolved identity.
func WithIdentity(ctx context.Context, id session.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

func IdentityFrom(ctx context.Context) (session.Identity, error) {
	if id, ok := ctx.Value(ctxIdentity).(session.Identity); ok && id.UserID != "" {
		return id, nil
	}
	return session.Identity{}, errors.New("identity not in context")
}

func OrganizationID(ctx context.Context) (string, error) {
	id, err := IdentityFrom(ctx)
	if err != nil || id.OrganizationID == "" {
		return "", errors.New("organization_id not in context")
	}
	return id.OrganizationID, nil
}

func IsAdmin(ctx context.Context) bool {
	id, err := IdentityFrom(ctx)
	return err == nil && id.IsAdminOfActiveOrg
}
