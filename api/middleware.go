package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

type contextKey string

const ownerKey contextKey = "owner"

// SessionHeader carries the anonymous session id issued by the front end.
const SessionHeader = "X-Session-ID"

// IdentityMiddleware attaches the caller's owner to the request context. A bearer
// token must be valid when present; both identities are optional.
func IdentityMiddleware(jwtSecret string, logger *utils.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := models.Owner{SessionID: strings.TrimSpace(r.Header.Get(SessionHeader))}

			if auth := r.Header.Get("Authorization"); auth != "" && jwtSecret != "" {
				token, ok := strings.CutPrefix(auth, "Bearer ")
				if !ok {
					utils.RespondError(w, logger, "Authorization header must be a bearer token", http.StatusUnauthorized)
					return
				}
				userID, err := utils.ValidateToken(jwtSecret, strings.TrimSpace(token))
				if err != nil {
					utils.RespondError(w, logger, "Invalid or expired token", http.StatusUnauthorized)
					return
				}
				owner.UserID = userID
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
		})
	}
}

// OwnerFromContext returns the owner set by IdentityMiddleware, or the zero owner.
func OwnerFromContext(ctx context.Context) models.Owner {
	owner, _ := ctx.Value(ownerKey).(models.Owner)
	return owner
}

