package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	contextKeyUserID   = "auth.user_id"
	contextKeyUsername = "auth.username"
)

// Verifier checks a raw bearer token.
type Verifier interface {
	Verify(tokenStr string) (*Claims, error)
}

// RequireBearer rejects requests without a valid "Authorization: Bearer <jwt>"
// header. On success the caller's id and username are stored on the context.
func RequireBearer(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}

		claims, err := v.Verify(tokenStr)
		if err != nil {
			unauthorized(c)
			return
		}

		id, _ := claims.UserID()
		c.Set(contextKeyUserID, id)
		c.Set(contextKeyUsername, claims.Username)
		c.Next()
	}
}

// UserIDFromContext returns the caller id set by RequireBearer. 0 if not set.
func UserIDFromContext(c *gin.Context) int64 {
	return c.GetInt64(contextKeyUserID)
}

// UsernameFromContext returns the caller username set by RequireBearer.
func UsernameFromContext(c *gin.Context) string {
	return c.GetString(contextKeyUsername)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"statusCode": http.StatusUnauthorized,
		"message":    "Unauthorized",
	})
}
