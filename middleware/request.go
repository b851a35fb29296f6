package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vnkhanh/comuni-server/services"
	"github.com/vnkhanh/comuni-server/utils"
)

const HeaderTimezone = "X-Timezone"

// Timezone puts the caller's IANA zone from X-Timezone on the request context.
// Unknown or missing zones leave the server default in place.
func Timezone() gin.HandlerFunc {
	return func(c *gin.Context) {
		if name := c.GetHeader(HeaderTimezone); name != "" {
			if loc, ok := utils.ParseLocation(name); ok {
				c.Request = c.Request.WithContext(services.WithLocation(c.Request.Context(), loc))
			}
		}
		c.Next()
	}
}

// Timeout bounds every store round trip made while serving the request.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger writes one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if uid := UserID(c); uid != uuid.Nil {
			entry = entry.WithField("user_id", uid)
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
