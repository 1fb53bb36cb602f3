package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-Id"

const (
	ginLoggerKey  = "logger"
	ginTenantKey  = "log_tenant_id"
	ginUserKey    = "log_user_id"
	ginRequestKey = "request_id"
)

// Middleware returns a Gin middleware that injects request_id and logs request summaries.
// Identity attached with SetIdentity is included in the summary line.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		// attach request_id logger
		reqLogger := l.With("request_id", rid)
		c.Set(ginLoggerKey, reqLogger)
		c.Set(ginRequestKey, rid)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLogger))

		c.Next()

		dur := time.Since(start)
		status := c.Writer.Status()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		attrs := []any{
			"method", method,
			"path", path,
			"status", status,
			"duration_ms", float64(dur.Milliseconds()),
		}
		if tid := c.GetString(ginTenantKey); tid != "" {
			attrs = append(attrs, "tenant_id", tid)
		}
		if uid := c.GetString(ginUserKey); uid != "" {
			attrs = append(attrs, "user_id", uid)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
			reqLogger.Error("request", attrs...)
			return
		}
		reqLogger.Info("request", attrs...)
	}
}

// SetIdentity records the authenticated tenant and user for the request and
// replaces the request-scoped logger with one carrying both.
func SetIdentity(c *gin.Context, tenantID, userID string) *slog.Logger {
	c.Set(ginTenantKey, tenantID)
	c.Set(ginUserKey, userID)
	l := FromGin(c).With("tenant_id", tenantID, "user_id", userID)
	c.Set(ginLoggerKey, l)
	return l
}

// RequestID returns the id assigned by Middleware, or "".
func RequestID(c *gin.Context) string {
	return c.GetString(ginRequestKey)
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
