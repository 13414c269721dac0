package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/common"
)

// Recovery turns a handler panic into the 500 envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Recovery] request_id=%s path=%s panic=%v\n%s",
					c.GetString(RequestIDKey), c.Request.URL.Path, r, debug.Stack())
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, 50000, "internal server error")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
