package shared

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// SessionUserID returns the user bound to the request session. It reports
// false when there is no session, no user, or the stored ID is malformed.
func SessionUserID(ctx context.Context) (uuid.UUID, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return uuid.Nil, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
