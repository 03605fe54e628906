package session

import (
	"context"
	"net/http"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const workspaceContextKey contextKey = "workspace"

// FromContext returns the workspace attached by the session middleware,
// or nil.
//
// Usage:
//
//	ws := session.FromContext(r.Context())
//	if ws == nil {
//	    // middleware not installed
//	}
func FromContext(ctx context.Context) *Workspace {
	ws, ok := ctx.Value(workspaceContextKey).(*Workspace)
	if !ok {
		return nil
	}
	return ws
}

// FromRequest is FromContext for a request.
func FromRequest(r *http.Request) *Workspace {
	return FromContext(r.Context())
}

// WithWorkspace stores ws in the context.
func WithWorkspace(ctx context.Context, ws *Workspace) context.Context {
	return context.WithValue(ctx, workspaceContextKey, ws)
}
