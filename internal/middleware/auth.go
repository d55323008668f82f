package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"oureat/internal/domain"
)

type callerKey struct{}

// Claims binds a ledger address to a signed token. The ledger core never
// authenticates anything itself; it only receives the address this layer
// verified.
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// GenerateToken signs a bearer token for the given address. Used by the dev
// token endpoint and by tests; production deployments are expected to run a
// real signer in front.
func GenerateToken(address domain.Address, secret []byte, ttl time.Duration) (string, error) {
	claims := Claims{
		Address: string(address),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Principal validates the Authorization header and injects the caller address
// into the request context. Mutating ledger routes sit behind it; read-only
// getters do not.
func Principal(secret []byte, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, "authorization header required (Bearer <token>)")
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !token.Valid {
				logger.Debug("rejected bearer token", zap.Error(err))
				writeAuthError(w, "invalid or expired token")
				return
			}

			if claims.Address == "" {
				writeAuthError(w, "token carries no address claim")
				return
			}

			ctx := WithCaller(r.Context(), domain.Address(claims.Address))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithCaller binds a caller principal to the context. Exported for tests.
func WithCaller(ctx context.Context, caller domain.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom extracts the caller principal bound by Principal.
func CallerFrom(ctx context.Context) (domain.Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(domain.Address)
	if !ok || caller.IsZero() {
		return domain.ZeroAddress, false
	}
	return caller, true
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
