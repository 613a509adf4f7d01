package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-community/internal/apperrors"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/utils"
)

type contextKey string

const actorKey contextKey = "actor"

// Middleware rejects requests without a valid bearer token and stores the
// actor in the request context.
func Middleware(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return middleware(v, log, true)
}

// Optional attaches the actor when a token is sent and lets anonymous requests
// through. A token that fails verification is still rejected.
func Optional(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return middleware(v, log, false)
}

func middleware(v Verifier, log *logger.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" && !required {
				next.ServeHTTP(w, r)
				return
			}

			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				unauthorized(w, log, r, err)
				return
			}

			actor, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				unauthorized(w, log, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRoles lets through only actors holding one of roles. It must run
// after Middleware.
func RequireRoles(log *logger.Logger, roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if ok {
				for _, role := range roles {
					if actor.Role == role {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			if log != nil {
				log.LogSecurity("ROLE_DENIED", fmt.Sprintf("actor %d (%s) on %s %s", actor.UserID, actor.Role, r.Method, r.URL.Path))
			}
			utils.RespondError(w, "Access denied", apperrors.Forbidden("role %q may not call this endpoint", actor.Role))
		})
	}
}

func unauthorized(w http.ResponseWriter, log *logger.Logger, r *http.Request, err error) {
	if log != nil {
		log.LogSecurity("UNAUTHORIZED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
	resp := utils.ErrorResponse("Authentication required", err.Error())
	resp.Code = "UNAUTHORIZED"
	utils.RespondJSON(w, http.StatusUnauthorized, resp)
}

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}
