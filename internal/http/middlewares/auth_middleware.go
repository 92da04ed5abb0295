package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/geocoder89/taskhub/internal/actorctx"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

type AuthMiddleware struct {
	tokens TokenVerifier
}

func NewAuthMiddleware(tokens TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		scheme, raw, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "bearer") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw = strings.TrimSpace(raw)
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid access token")
			return
		}

		userID, err := m.tokens.VerifyToken(c.Request.Context(), raw)
		if err != nil {
			// expired, forged and garbled tokens look the same from outside
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		c.Set(CtxUserID, userID)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), userID))

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	reqID, _ := c.Get(CtxRequestID)
	rid, _ := reqID.(string)

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":       "unauthorized",
			"message":    message,
			"request_id": rid,
		},
	})
}

// Optional helper so handlers don't need to know the magic key.
func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return actorctx.UserIDFrom(c.Request.Context())
	}
	id, ok := v.(string)
	return id, ok
}
