package httpx

import "context"

type ctxKey string

const CtxKeyUserID ctxKey = "user_id"

// WithUserID tags ctx with the signed-in user, used to key per-user limits.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxKeyUserID, userID)
}

// UserIDFromContext returns the user set by WithUserID, or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CtxKeyUserID).(string)
	return id
}
