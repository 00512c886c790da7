package content

import (
	"context"
	"strings"
)

type actorKey struct{}

// WithActor returns a context carrying the authenticated actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored by WithActor. An actor without a
// UID is treated as absent.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || strings.TrimSpace(a.UID) == "" {
		return Actor{}, false
	}
	return a, true
}

// RequireActor returns the context actor or an *AuthError.
func RequireActor(ctx context.Context) (Actor, error) {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, &AuthError{Reason: ErrNoActor}
	}
	return a, nil
}

// ActorFromClaims maps verified token claims onto an Actor. Keycloak puts
// realm roles under realm_access.roles; plain JWTs may carry a top-level
// roles array.
func ActorFromClaims(claims map[string]interface{}) (Actor, bool) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Actor{}, false
	}
	a := Actor{UID: sub}
	for _, k := range []string{"name", "preferred_username", "email"} {
		if v, ok := claims[k].(string); ok && v != "" {
			a.DisplayName = v
			break
		}
	}
	a.Roles = append(a.Roles, stringSlice(claims["roles"])...)
	if ra, ok := claims["realm_access"].(map[string]interface{}); ok {
		a.Roles = append(a.Roles, stringSlice(ra["roles"])...)
	}
	return a, true
}

func stringSlice(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
