package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CapConcurrentRequests limits how many requests the admin API will
// process at once; anything past maxConcurrent gets a 429 instead of
// queueing behind already-in-flight process/VFS operations.
//
// Example usage:
//
//	router.Use(CapConcurrentRequests(64))
func CapConcurrentRequests(maxConcurrent int) gin.HandlerFunc {
	semaphore := make(chan struct{}, maxConcurrent)

	return func(c *gin.Context) {
		select {
		case semaphore <- struct{}{}:
			defer func() { <-semaphore }()
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "too many concurrent requests",
			})
		}
	}
}
