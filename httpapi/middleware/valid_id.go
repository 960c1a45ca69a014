package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PIDParamKey is where RequireValidPID stashes the parsed PID for handlers
// that would otherwise have to re-parse c.Param("pid").
const PIDParamKey = "pid"

// RequireValidPID ensures the path param ":pid" parses as a uint32.
func RequireValidPID() gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param("pid")
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid pid"})
			return
		}
		c.Set(PIDParamKey, uint32(id))
		c.Next()
	}
}
