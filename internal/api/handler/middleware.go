package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextUserID = "userID"

// AuthRequired extracts and verifies the bearer token, placing the
// authenticated identity in the request context.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := h.Tokens.Verify(bearerToken(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		c.Set(contextUserID, claims.UserID)
		c.Next()
	}
}

// bearerToken pulls the token from the Authorization header, falling
// back to the "token" query parameter for WebSocket clients that cannot
// set headers.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// currentUserID returns the identity set by AuthRequired.
func currentUserID(c *gin.Context) string {
	return c.GetString(contextUserID)
}
