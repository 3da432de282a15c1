package httpx

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
)

var (
	ErrMissingToken      = apperr.New(apperr.Unauthorized, "MISSING_TOKEN", "Access token is required")
	ErrInvalidToken      = apperr.New(apperr.Unauthorized, "INVALID_TOKEN", "Invalid access token")
	ErrMissingPaymentKey = apperr.New(apperr.Unauthorized, "MISSING_PAYMENT_API_KEY", "Payment API key is required")
	ErrInvalidPaymentKey = apperr.New(apperr.Unauthorized, "INVALID_PAYMENT_API_KEY", "Invalid Payment API key")
)

const PaymentAPIKeyHeader = "payment-api-key"

// Claims are issued by the auth service; only the user id is used here.
type Claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

type ctxKey int

const userIDKey ctxKey = iota

func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// IssueToken signs an HS256 access token for userID.
func IssueToken(secret []byte, userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID > 0 {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

// bearer reads the Authorization header, falling back to the access_token
// query parameter for EventSource clients that cannot set headers.
func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func RequireUser(secret []byte, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				writeError(w, r, log, ErrMissingToken)
				return
			}
			claims, err := parseToken(secret, raw)
			if err != nil {
				log.Debug("rejected token", zap.Error(err))
				writeError(w, r, log, ErrInvalidToken)
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequirePaymentKey(key string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(PaymentAPIKeyHeader)
			if got == "" {
				writeError(w, r, log, ErrMissingPaymentKey)
				return
			}
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeError(w, r, log, ErrInvalidPaymentKey)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
