package goAccounts

import "context"

type clientIPContextKey struct{}
type actorContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Login drivers use it
// as the connection address and audit events record it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithActor attaches the authenticated user performing the call. It becomes
// PerformedBy on IPostUserCreated and the caller of SetRoomKeyID.
func WithActor(ctx context.Context, actor *User) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ClientIPFromContext returns the address attached by WithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	return clientIPFromContext(ctx)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func actorFromContext(ctx context.Context) *User {
	if ctx == nil {
		return nil
	}

	actor, _ := ctx.Value(actorContextKey{}).(*User)
	return actor
}
