package server

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
	"github.com/joseph-ayodele/payment-receipts/internal/ratelimit"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carried by access tokens. Subject is the user UUID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Sign issues a token for p; used by tooling and tests.
func (v *Verifier) Sign(p common.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ParseAndValidate returns the principal named by a valid token.
func (v *Verifier) ParseAndValidate(tokenStr string) (common.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := new(Claims)
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return common.Principal{}, ErrInvalidToken
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return common.Principal{}, ErrInvalidToken
	}
	role := constants.Role(constants.NormalizeToken(claims.Role))
	switch role {
	case constants.RoleCustomer, constants.RoleSeller, constants.RoleAdmin:
	default:
		return common.Principal{}, ErrInvalidToken
	}
	return common.Principal{UserID: uid, Role: role}, nil
}

// Authenticate requires a valid bearer token and stores the principal in the request context.
func Authenticate(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(h, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				WriteError(w, http.StatusUnauthorized, common.CodeUnauthorized, "Missing bearer token", nil)
				return
			}
			p, err := v.ParseAndValidate(strings.TrimSpace(token))
			if err != nil {
				WriteError(w, http.StatusUnauthorized, common.CodeUnauthorized, "Invalid or expired token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(common.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...constants.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := common.PrincipalFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, common.CodeUnauthorized, "Authentication required", nil)
				return
			}
			if !slices.Contains(roles, p.Role) {
				WriteError(w, http.StatusForbidden, common.CodeForbidden, "Insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter counts calls per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// RateLimit limits authenticated callers by user id. A limiter error lets the request through.
func RateLimit(l RateLimiter, scope string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":ip:" + clientIP(r)
			if p, ok := common.PrincipalFromContext(r.Context()); ok {
				key = scope + ":uid:" + p.UserID.String()
			}

			d, err := l.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("ratelimit.unavailable", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				WriteError(w, http.StatusTooManyRequests, common.CodeRateLimited,
					"Too many requests, try again in "+strconv.Itoa(secs)+"s", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	return r.RemoteAddr
}
