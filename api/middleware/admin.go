package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/harborline/excursions-backend/api/responses"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/logger"
)

const adminKeyHeader = "X-Admin-Key"

// AdminKey gates the back-office routes behind the configured API key. An
// empty configured key fails closed so a misdeployed instance never exposes
// the admin surface.
func AdminKey(configuredKey string, logg *logger.Logger) func(http.Handler) http.Handler {
	configuredKey = strings.TrimSpace(configuredKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if configuredKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access not configured"))
				return
			}

			provided := strings.TrimSpace(r.Header.Get(adminKeyHeader))
			if subtle.ConstantTimeCompare([]byte(provided), []byte(configuredKey)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "invalid admin key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
