// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/carterperez-dev/taskflow-auth/internal/authz"
	"github.com/carterperez-dev/taskflow-auth/internal/core"
	"github.com/carterperez-dev/taskflow-auth/internal/session"
)

type contextKey string

const (
	AccountIDKey contextKey = "account_id"
	IdentityKey  contextKey = "identity"
)

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*session.Identity, error)
}

type PermissionChecker interface {
	Authorize(ctx context.Context, accountID string, perm authz.Permission) error
}

func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)

			if token == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("missing authorization token"),
				)
				return
			}

			identity, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, AccountIDKey, identity.AccountID)
			ctx = context.WithValue(ctx, IdentityKey, identity)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission must run after Authenticator.
func RequirePermission(
	checker PermissionChecker,
	perm authz.Permission,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID := GetAccountID(r.Context())

			if accountID == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("authentication required"),
				)
				return
			}

			if err := checker.Authorize(r.Context(), accountID, perm); err != nil {
				if errors.Is(err, core.ErrPermissionDenied) || errors.Is(err, core.ErrNotFound) {
					core.JSONError(w, core.ForbiddenError("insufficient permissions"))
					return
				}
				core.JSONError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func handleAuthError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError())
	default:
		core.JSONError(w, err)
	}
}

func GetAccountID(ctx context.Context) string {
	if id, ok := ctx.Value(AccountIDKey).(string); ok {
		return id
	}
	return ""
}

func GetIdentity(ctx context.Context) *session.Identity {
	if identity, ok := ctx.Value(IdentityKey).(*session.Identity); ok {
		return identity
	}
	return nil
}

func IsAuthenticated(ctx context.Context) bool {
	return GetAccountID(ctx) != ""
}
