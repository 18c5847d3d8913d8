package auth

import (
	"net/http"

	"snapkart-be/internal/logger"

	"go.uber.org/zap"
)

// Middleware resolves the caller identity from the access token. Requests
// without a valid token continue anonymously; handlers decide via Require.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := ExtractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := ParseToken(tokenStr, secret)
			if err != nil {
				logger.FromCtx(r.Context()).Debug("ignoring invalid access token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = logger.WithFields(ctx,
				zap.Int64("user_id", id.ID),
				zap.String("role", string(id.Role)),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
