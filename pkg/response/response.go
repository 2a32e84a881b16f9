package response

import (
	"errors"
	"fmt"
	"net/http"

	"anoa.com/unimarket/pkg/apperror"
	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/ratelimiter"
	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key the auth middleware stores the verified subject under.
const IdentityKey = "identity"

// GetIdentity retrieves the authenticated identity reference from the context
func GetIdentity(c *gin.Context) (string, error) {
	identity := c.GetString(IdentityKey)
	if identity == "" {
		return "", apperror.ErrUnauthorized
	}
	return identity, nil
}

// OptionalIdentity returns the identity when the request carried a valid token, or "".
func OptionalIdentity(c *gin.Context) string {
	return c.GetString(IdentityKey)
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	var rateLimitErr *ratelimiter.RateLimitError
	if errors.As(err, &rateLimitErr) {
		c.Header("Retry-After", fmt.Sprintf("%.0f", rateLimitErr.RetryAfter.Seconds()))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": rateLimitErr.Message})
		return
	}

	code := apperror.MapErrorToStatus(err)

	// Log internal errors
	if code == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).WithError(err).Error("internal error")
		c.JSON(code, gin.H{"error": apperror.ErrInternal.Error()})
		return
	}

	c.JSON(code, gin.H{"error": err.Error()})
}
