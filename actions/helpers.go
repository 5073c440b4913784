package actions

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

func getQueryAsInt(c *gin.Context, name string, defaultValue int) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return defaultValue
	}
	return value
}

func getQueryAsBool(c *gin.Context, name string) bool {
	value, err := strconv.ParseBool(c.Query(name))
	if err != nil {
		return false
	}
	return value
}

func getParamAsUint64(c *gin.Context, name string) (uint64, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Ping godoc
func Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}
