package server

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KaramelBytes/deliverylens/internal/logger"
	"github.com/KaramelBytes/deliverylens/internal/ratelimit"
)

const (
	headerRequestID = "X-Request-Id"
	ctxRequestID    = "request_id"
)

// requestID tags every request and response with an id, reusing a valid
// incoming X-Request-Id.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("%s %s status=%d dur=%s ip=%s request_id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Microsecond), c.ClientIP(), c.GetString(ctxRequestID))
	}
}

// rateLimit rejects clients over their upload budget. Limiter failures are
// logged and the request is admitted.
func rateLimit(l ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		wait, err := l.ShouldWait(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable, admitting request: %v", err)
			c.Next()
			return
		}
		if wait > 0 {
			secs := int(math.Ceil(wait.Seconds()))
			c.Header("Retry-After", fmt.Sprint(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":           "rate limit exceeded",
				"retry_after_sec": secs,
			})
			return
		}
		c.Next()
	}
}
