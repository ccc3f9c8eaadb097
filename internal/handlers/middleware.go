package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spigotlabs/spigot-api/internal/helpers"
)

// IdentityHeader carries the caller's on-ledger identity. Enforcement is
// identity-based: the engine decides what each identity may do, the
// transport only establishes who is calling.
const IdentityHeader = "X-Spigot-Identity"

const identityKey = "spigot_identity"

// IdentityRequired rejects requests without a well-formed caller identity
// and stores the normalized address for handlers.
func IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.GetHeader(IdentityHeader)
		if !helpers.IsIdentityUsable(address) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "A valid " + IdentityHeader + " header is required",
			})
			return
		}
		c.Set(identityKey, helpers.NormalizeAddress(address))
		c.Next()
	}
}

// CallerAddress returns the identity established by IdentityRequired.
func CallerAddress(c *gin.Context) string {
	return c.GetString(identityKey)
}
