package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ContextKey string

const (
	OrganizationIDKey ContextKey = "organizationID"
	ActorKey          ContextKey = "actor"
	DeviceKey         ContextKey = "device"
)

const (
	OrganizationHeader = "X-Organization-ID"
	ActorHeader        = "X-Actor"
	DeviceHeader       = "X-Device"
)

// RequireOrganization rejects requests without a valid organization header and stores the organization,
// actor and device in the request context. Authenticating the caller happens upstream.
func RequireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, err := uuid.Parse(r.Header.Get(OrganizationHeader))
		if err != nil {
			http.Error(w, "missing or malformed "+OrganizationHeader+" header", http.StatusUnauthorized)
			return
		}

		ctx := WithOrganization(r.Context(), orgID)
		ctx = WithActor(ctx, r.Header.Get(ActorHeader), r.Header.Get(DeviceHeader))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithOrganization(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, OrganizationIDKey, orgID)
}

func WithActor(ctx context.Context, actor, device string) context.Context {
	if actor == "" {
		actor = "anonymous"
	}
	ctx = context.WithValue(ctx, ActorKey, actor)
	return context.WithValue(ctx, DeviceKey, device)
}

func GetOrganizationIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(OrganizationIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}

// GetActorFromContext returns who is acting and from which device, "system" when nothing was set.
func GetActorFromContext(ctx context.Context) (actor, device string) {
	actor, ok := ctx.Value(ActorKey).(string)
	if !ok || actor == "" {
		actor = "system"
	}
	device, _ = ctx.Value(DeviceKey).(string)
	return actor, device
}
