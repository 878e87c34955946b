package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/netx"
	"github.com/dmitrijs2005/filestore/internal/server/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// authenticate requires a bearer token carrying scope.
func (s *Server) authenticate(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			netx.WriteError(w, fmt.Errorf("missing bearer token: %w", common.ErrorUnauthorized))
			return
		}

		claims, err := auth.ParseToken(token, s.secret)
		if err != nil {
			netx.WriteError(w, err)
			return
		}
		if !claims.HasScope(scope) {
			netx.WriteError(w, fmt.Errorf("scope %s required: %w", scope, common.ErrorPermissionDenied))
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// actingUser resolves who an operation is performed for. actual_user is
// honoured only for admin callers.
func actingUser(r *http.Request) (user, actAs string, err error) {
	claims := claimsFrom(r.Context())
	user = claims.UserID
	actual := r.URL.Query().Get("actual_user")
	if actual == "" || actual == user {
		return user, "", nil
	}
	if !claims.HasScope(common.ScopeAdmin) {
		return "", "", fmt.Errorf("actual_user requires %s: %w", common.ScopeAdmin, common.ErrorPermissionDenied)
	}
	return user, actual, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug(r.Context(), "request served",
			"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
