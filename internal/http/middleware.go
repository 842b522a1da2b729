package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	applog "moneta/internal/log"
)

type ctxKey int

const ownerKey ctxKey = 0

// ownerHeader carries the authenticated user id, injected by the auth
// collaborator in front of this service. Requests without it are rejected;
// the ledger never guesses an owner.
const ownerHeader = "X-Owner-ID"

func withOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(ownerHeader)
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing owner identity"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

func ownerFrom(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey).(string)
	return owner
}

// requestLogger logs one line per request with the shared field names.
func requestLogger(logger *applog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "request handled",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldStatusCode, ww.Status(),
				applog.FieldDuration, time.Since(start).Milliseconds(),
				applog.FieldRequestID, middleware.GetReqID(r.Context()),
			)
		})
	}
}
