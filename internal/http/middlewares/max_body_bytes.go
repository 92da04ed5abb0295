package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps request bodies at limit bytes. A declared Content-Length
// over the cap is refused before the handler runs; chunked bodies are cut off
// by the reader and surface as *http.MaxBytesError during binding.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			reqID, _ := c.Get(CtxRequestID)
			rid, _ := reqID.(string)

			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": gin.H{
					"code":       "payload_too_large",
					"message":    "Request body is too large",
					"request_id": rid,
				},
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
