package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/auth"
	"github.com/suPer8Hu/postcraft/internal/common"
)

const (
	UserIDKey = "user_id"
	ClaimsKey = "auth_claims"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// AuthRequired accepts only unrevoked access tokens and stores the user id
// (uint64) under UserIDKey and the claims under ClaimsKey.
func AuthRequired(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			common.Fail(c, http.StatusUnauthorized, 40101, "missing bearer token")
			c.Abort()
			return
		}
		claims, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrTokenRevoked) {
				msg = "token revoked"
			} else if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrWrongTokenType) {
				log.Printf("[Auth] authenticate failed err=%v", err)
			}
			common.Fail(c, http.StatusUnauthorized, 40101, msg)
			c.Abort()
			return
		}
		uid, err := claims.UserID()
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "invalid token subject")
			c.Abort()
			return
		}
		c.Set(UserIDKey, uid)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
