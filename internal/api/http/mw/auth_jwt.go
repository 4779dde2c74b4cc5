package mw

import (
	"context"
	"errors"
	"net/http"

	"dexanalytics/internal/security"
	"dexanalytics/pkg/httputil"
)

type subjectCtxKey struct{}

type JWTMiddleware struct {
	verifier *security.RS256Verifier
}

func NewJWTMiddleware(v *security.RS256Verifier) (*JWTMiddleware, error) {
	if v == nil {
		return nil, errors.New("jwt verifier is required")
	}
	return &JWTMiddleware{verifier: v}, nil
}

func (m *JWTMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.verifier.VerifyBearer(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="clmm"`)
			_ = httputil.Error(w, r, http.StatusUnauthorized, httputil.CodeUnauthorized, err.Error(), nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), claims.Subject)))
	})
}

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectCtxKey{}, sub)
}

// SubjectFromContext is empty for anonymous requests
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectCtxKey{}).(string)
	return sub
}
