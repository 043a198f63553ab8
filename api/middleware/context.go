package middleware

import "context"

type contextKey string

const (
	ctxUserID          contextKey = "user_id"
	ctxRole            contextKey = "actor_role"
	ctxCredentialID    contextKey = "credential_id"
	ctxCredentialKeyID contextKey = "credential_key_id"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func CredentialIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCredentialID).(string); ok {
		return v
	}
	return ""
}

func CredentialKeyIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCredentialKeyID).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole injects the actor role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

// WithCredential injects the verified machine-credential identity into the
// context for downstream handlers.
func WithCredential(ctx context.Context, credentialID, keyID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxCredentialID, credentialID)
	return context.WithValue(ctx, ctxCredentialKeyID, keyID)
}
