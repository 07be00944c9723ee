package kvstore

import (
	"context"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
)

type contextKey string

// WorkspaceKey is the context key holding the active workspace id.
const WorkspaceKey contextKey = "workspace_id"

// DefaultWorkspace is used when a request does not name a workspace.
const DefaultWorkspace = "default"

// HeaderWorkspaceID carries the workspace id on requests.
const HeaderWorkspaceID = "X-Workspace-ID"

var workspaceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidWorkspaceID reports whether id may be used as a workspace id.
func ValidWorkspaceID(id string) bool {
	return workspaceIDPattern.MatchString(id)
}

// WithWorkspace returns a copy of ctx bound to workspace id.
func WithWorkspace(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, WorkspaceKey, id)
}

// WorkspaceFromContext returns the workspace bound to ctx, or
// DefaultWorkspace.
func WorkspaceFromContext(ctx context.Context) string {
	if ctx == nil {
		return DefaultWorkspace
	}
	if id, ok := ctx.Value(WorkspaceKey).(string); ok && id != "" {
		return id
	}
	return DefaultWorkspace
}

// WorkspaceMiddleware resolves the workspace for each request from the
// X-Workspace-ID header, then the workspace_id query parameter, then
// defaultWorkspace, and binds it to the request context.
func WorkspaceMiddleware(defaultWorkspace string) echo.MiddlewareFunc {
	if defaultWorkspace == "" {
		defaultWorkspace = DefaultWorkspace
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := extractWorkspaceID(c, defaultWorkspace)
			if !ValidWorkspaceID(id) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid workspace identifier")
			}

			ctx := WithWorkspace(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("workspace_id", id)
			return next(c)
		}
	}
}

func extractWorkspaceID(c echo.Context, defaultWorkspace string) string {
	if id := c.Request().Header.Get(HeaderWorkspaceID); id != "" {
		return id
	}
	if id := c.QueryParam("workspace_id"); id != "" {
		return id
	}
	return defaultWorkspace
}

// Scoped prefixes every key with the workspace bound to the call's context,
// so each workspace sees an independent key space.
type Scoped struct {
	inner Store
}

// NewScoped wraps inner with workspace key scoping.
func NewScoped(inner Store) *Scoped {
	return &Scoped{inner: inner}
}

// ScopedKey returns the backend key for key in the context's workspace.
func ScopedKey(ctx context.Context, key string) string {
	return "ws:" + WorkspaceFromContext(ctx) + ":" + key
}

func (s *Scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, ScopedKey(ctx, key))
}

func (s *Scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.Set(ctx, ScopedKey(ctx, key), value)
}

func (s *Scoped) SetMany(ctx context.Context, entries map[string][]byte) error {
	scoped := make(map[string][]byte, len(entries))
	for k, v := range entries {
		scoped[ScopedKey(ctx, k)] = v
	}
	return s.inner.SetMany(ctx, scoped)
}

func (s *Scoped) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, ScopedKey(ctx, key))
}

func (s *Scoped) Close() error { return s.inner.Close() }
