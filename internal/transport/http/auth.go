package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const claimsKey contextKey = "claims"

// RoleAdmin unlocks the award endpoints.
const RoleAdmin = "admin"

// Claims is the subset of the token the service relies on.
type Claims struct {
	UserID string
	Name   string
	Role   string
}

// JWTAuth verifies HS256 tokens issued by the platform's auth service.
type JWTAuth struct {
	secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{secret: []byte(secret)}
}

// IssueToken signs a token for userID. Used by tooling and tests; production tokens come from the auth service.
func (j *JWTAuth) IssueToken(userID, name, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"name":    name,
		"role":    role,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// Parse validates tokenStr and extracts its claims.
func (j *JWTAuth) Parse(tokenStr string) (Claims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, errors.New("invalid token claims")
	}
	userID, _ := mc["user_id"].(string)
	if userID == "" {
		return Claims{}, errors.New("missing user_id claim")
	}
	name, _ := mc["name"].(string)
	role, _ := mc["role"].(string)
	return Claims{UserID: userID, Name: name, Role: role}, nil
}

// Middleware requires a valid bearer token and stores its claims in the request context.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}
		claims, err := j.Parse(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "token has expired")
			} else {
				writeError(w, http.StatusUnauthorized, "invalid token")
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// RequireAdmin rejects callers whose token does not carry the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ClaimsFrom(r.Context()).Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClaimsFrom returns the authenticated caller, or zero Claims outside the middleware.
func ClaimsFrom(ctx context.Context) Claims {
	c, _ := ctx.Value(claimsKey).(Claims)
	return c
}
