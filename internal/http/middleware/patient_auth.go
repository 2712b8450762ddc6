package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/odontosys/booking-wizard/internal/auth"
)

type contextKey string

const patientSessionKey contextKey = "patientSession"

// PatientAuth parses an optional patient bearer token. Requests without a
// token pass through unauthenticated (guests book without one); a token
// that is present but invalid is rejected.
func PatientAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "malformed authorization header", http.StatusUnauthorized)
				return
			}
			session, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), patientSessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PatientFromContext returns the authenticated patient session if present.
func PatientFromContext(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(patientSessionKey).(*auth.Session)
	return session, ok
}
