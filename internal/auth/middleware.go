package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/phara0n/ecarv1/internal/httpx"
)

type ctxKey string

const customerIDCtxKey = ctxKey("customerID")

// WithCustomerID stores the authenticated customer id in context.
func WithCustomerID(ctx context.Context, id uint) context.Context {
	return context.WithValue(ctx, customerIDCtxKey, id)
}

// CustomerIDFromContext extracts the authenticated customer id.
func CustomerIDFromContext(ctx context.Context) (uint, bool) {
	v := ctx.Value(customerIDCtxKey)
	if v == nil {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// RequireAuth rejects requests without a valid bearer token.
// Tokens are always required; there is no permissive development mode.
func (t *TokenIssuer) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httpx.JSONError(w, http.StatusUnauthorized, ErrTokenMissing.Error(), nil)
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if tokenString == "" || tokenString == header {
			httpx.JSONError(w, http.StatusUnauthorized, ErrTokenInvalid.Error(), nil)
			return
		}
		id, err := t.Verify(tokenString)
		if err != nil {
			httpx.JSONError(w, http.StatusUnauthorized, ErrTokenInvalid.Error(), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCustomerID(r.Context(), id)))
	})
}
