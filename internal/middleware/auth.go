package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/auth"
)

const (
	userIDKey   = "userId"
	usernameKey = "username"
)

// TokenVerifier checks a bearer token. *auth.TokenIssuer satisfies it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Auth rejects requests without a valid bearer token with 403 and stores
// the caller's user id in the context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			RespondWithError(c, http.StatusForbidden, "Authorization header missing or invalid")
			c.Abort()
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			RespondWithError(c, http.StatusForbidden, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(usernameKey, claims.Username)
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, bool) {
	id := c.GetString(userIDKey)
	return id, id != ""
}

// SetUserID stores an authenticated user id; handler tests use it to stand
// in for Auth.
func SetUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}
