package handlers

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/services/identity"
	"github.com/sirupsen/logrus"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger logs one line per request
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		a.logger.WithFields(logrus.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    rec.status,
			"client_id": clientID(r),
			"duration":  time.Since(start).String(),
		}).Debug("Handled request")
	})
}

// requireUser verifies the bearer token and stores the user id on the context
func (a *API) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bearer, ok := identity.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			a.fail(w, r, identity.ErrUnauthorized)
			return
		}

		id, err := a.verifier.Verify(bearer)
		if err != nil {
			a.fail(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, id)
		next(w, r.WithContext(ctx))
	}
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDContextKey).(string)
	return id
}

// clientID keys the rate limiter by caller network address
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
