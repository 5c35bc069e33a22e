package accounts

import (
	"context"
)

var userCtxKey = &contextKey{"user"}
var ipCtxKey = &contextKey{"ip_address"}

type contextKey struct {
	name string
}

// WithCurrentUser sets the resolved User for the current request. The context
// is the only carrier of "current user" state; there is no process-global.
func WithCurrentUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// CurrentUser finds the user from the context.
func CurrentUser(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithIPAddress records the caller's source IP for throttle bookkeeping.
func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipCtxKey, ip)
}

// IPAddress returns the source IP recorded on the context, if any.
func IPAddress(ctx context.Context) string {
	raw, _ := ctx.Value(ipCtxKey).(string)
	return raw
}
