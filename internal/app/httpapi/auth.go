package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blef1o/tunebank/pkg/logger"
)

type contextKey string

const ctxCallerKey contextKey = "caller"

// Claims carries the authenticated account in the token subject.
type Claims struct {
	Account string `json:"account"`
	jwt.RegisteredClaims
}

// GenerateToken issues an HS256 token for an account. Used by the CLI
// and tests; production deployments may mint tokens elsewhere as long
// as the secret matches.
func GenerateToken(secret []byte, account string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", fmt.Errorf("account is required")
	}
	now := time.Now()
	claims := &Claims{
		Account: account,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "tunebank",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func validateToken(secret []byte, tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	account := claims.Account
	if account == "" {
		account = claims.Subject
	}
	if account == "" {
		return "", fmt.Errorf("token carries no account")
	}
	return account, nil
}

// authMiddleware authenticates bearer tokens and stores the caller
// account in the request context.
func authMiddleware(secret []byte, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, fmt.Errorf("missing authorization header"))
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid authorization header format"))
				return
			}

			account, err := validateToken(secret, parts[1])
			if err != nil {
				log.WithError(err).Warn("token validation failed")
				writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxCallerKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerFrom returns the authenticated account, or "" on unauthenticated
// routes.
func callerFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxCallerKey).(string); ok {
		return v
	}
	return ""
}
