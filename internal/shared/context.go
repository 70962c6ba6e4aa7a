package shared

import "context"

type userContextKey struct{}

// UserIDHeader carries the tenant identifier on API requests.
const UserIDHeader = "X-User-ID"

// ContextWithUserID stores the tenant user id in context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// UserIDFromContext extracts the tenant user id from context.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userContextKey{}).(string)
	return userID
}
