package auth

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/utils"
)

// Middleware authenticates every request with verifier and stores the
// actor in the request context.
func Middleware(verifier Verifier, l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			actor, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				l.Warn("AUTH", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func unauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(utils.ErrorBody{Error: reason, Code: string(apperr.CodeUnauthorized)})
}
