package middleware

import (
	"github.com/gin-gonic/gin"

	"banter/internal/pkg/id"
)

// RequestID 请求ID中间件
// 透传上游 X-Request-ID，没有则生成新的
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = id.New()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}
