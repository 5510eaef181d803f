package middlewares

import "github.com/gin-gonic/gin"

func abortWithError(c *gin.Context, status int, code, detail string) {
	body := gin.H{
		"detail": detail,
		"code":   code,
	}

	if id := c.GetString(CtxRequestID); id != "" {
		body["requestId"] = id
	}

	c.AbortWithStatusJSON(status, body)
}
