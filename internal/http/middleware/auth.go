package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/intromatch-backend/internal/http/response"
	"github.com/yungbote/intromatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

const headerAdminToken = "X-Admin-Token"

var errMissingSubject = errors.New("token has no subject")

// AuthMiddleware verifies HS256 bearer tokens; the token subject is the
// identity-provider user id.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), secret: []byte(secret)}
}

// RequireAuth rejects requests without a valid token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return am.handler(true)
}

// OptionalAuth attaches the subject when a token is present; a present but
// invalid token is still rejected.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return am.handler(false)
}

func (am *AuthMiddleware) handler(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearer(c)
		if tokenString == "" {
			if required {
				response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
				return
			}
			c.Next()
			return
		}
		sub, err := am.subject(tokenString)
		if err != nil {
			am.log.Debug("Rejected bearer token", "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithExternalUserID(c.Request.Context(), sub))
		c.Next()
	}
}

func (am *AuthMiddleware) subject(tokenString string) (string, error) {
	if len(am.secret) == 0 {
		return "", errors.New("JWT_SECRET_KEY not configured")
	}
	tok, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return "", errMissingSubject
	}
	return sub, nil
}

// RequireAdmin guards operator endpoints with a shared token. An empty
// configured token disables them.
func RequireAdmin(token string) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if len(want) == 0 {
			response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("admin endpoints disabled"))
			return
		}
		got := []byte(strings.TrimSpace(c.GetHeader(headerAdminToken)))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("invalid admin token"))
			return
		}
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
