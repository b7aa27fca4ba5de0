package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-studio/internal/common"
	"github.com/noah-isme/backend-studio/internal/tenant"
)

// RequireTenant rejects requests whose resolved tenant is missing or not a UUID.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := tenant.From(r.Context())
		if !ok {
			common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant is required", nil)
			return
		}
		if _, err := uuid.Parse(id); err != nil {
			common.JSONError(w, http.StatusBadRequest, "TENANT_INVALID", "tenant must be a UUID", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
