package gateway

import (
	"net/http"

	"github.com/example/roomservice/pkg/auth"
	"github.com/gin-gonic/gin"
)

const callerKey = "callerId"

// AuthMiddleware verifies an HMAC-signed bearer token and stores the caller
// id and role in the gin context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := auth.ParseBearer(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		claims, err := auth.Verify(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(callerKey, claims.CallerID)
		if claims.Role != "" {
			c.Set("role", claims.Role)
		}
		c.Next()
	}
}
