package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
	"github.com/utafrali/ReputationGo/pkg/httputil"
)

type authKey int

const (
	userIDKey authKey = iota
	roleKey
)

const UserHeader = "X-User-ID"

// Claims are the access-token claims this service understands.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthConfig configures JWTAuth.
type AuthConfig struct {
	// Secret is the HMAC key. An empty secret disables verification and the
	// caller identity is taken from the X-User-ID header instead.
	Secret string
	// Public lists path prefixes served without a token.
	Public []string
}

// JWTAuth validates HS256 bearer tokens and stores the caller in the context.
func JWTAuth(cfg AuthConfig, l *slog.Logger) func(http.Handler) http.Handler {
	key := []byte(cfg.Secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublic(cfg.Public, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) == 0 {
				ctx := WithUser(r.Context(), r.Header.Get(UserHeader), "")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			raw, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing or malformed bearer token"), l)
				return
			}

			claims := &Claims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				l.WarnContext(r.Context(), "rejected token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid or expired token"), l)
				return
			}

			user := claims.UserID
			if user == "" {
				user = claims.Subject
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user, claims.Role)))
		})
	}
}

// RequireRole answers 403 unless the caller has one of roles.
func RequireRole(l *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			for _, want := range roles {
				if role == want {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.WriteError(w, r, apperrors.Forbidden("insufficient permissions"), l)
		})
	}
}

// WithUser stores the caller identity; empty values are skipped.
func WithUser(ctx context.Context, userID, role string) context.Context {
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	if role != "" {
		ctx = context.WithValue(ctx, roleKey, role)
	}
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func isPublic(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
