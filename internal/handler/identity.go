package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/auth"
	"github.com/sakif/drink-journal/internal/service"
)

// ResolveUser maps the verified token identity to a user row, creating the
// row on first sight, and stores the user ID in the request context. It
// must run after auth.RequireAuth.
func ResolveUser(users *service.UserService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, r, logger, apperror.Unauthorized("authentication required"))
				return
			}

			u, err := users.EnsureUser(r.Context(), id.Subject, id.Email, id.Name, id.Picture)
			if err != nil {
				writeError(w, r, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), u.ID)))
		})
	}
}
