package middleware

import (
	"net/http"

	"github.com/avelinabooks/bookshop-backend/api/responses"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/logger"
)

// RequireTier rejects requests whose actor tier does not meet the minimum.
func RequireTier(minimum enums.UserTier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tier := TierFromContext(r.Context())
			if !tier.AtLeast(minimum) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient privileges"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
