package authgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error bodies carry a single human-readable detail field, mirroring the
// upstream API contract. Verification failures never expose more than the
// failure category.

func BadRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": detail})
}

func Unauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail})
}

func Forbidden(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": detail})
}

func NotFound(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": detail})
}

func TooMany(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "too many requests"})
}

func ServerErr(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": detail})
}

func Unavailable(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": detail})
}
