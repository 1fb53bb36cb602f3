package httpapi

import (
	"context"
	"errors"
	"net/http"

	"academy-platform/internal/audit"
	"academy-platform/internal/identity"
	"academy-platform/internal/isolation"
	"academy-platform/internal/session"
	"academy-platform/internal/tenant"
	"academy-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// writeError maps a service error to a status and a JSON body. Internal
// details never reach the client.
func writeError(c *gin.Context, err error) {
	if ae, ok := session.AsAuthError(err); ok {
		writeAuthError(c, ae)
		return
	}
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if errors.Is(err, tenant.ErrMissingTenantContext) {
		logger.FromGin(c).Error("data access without tenant scope", "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, tenant.ErrMissingTenantContext):
		return http.StatusInternalServerError, "internal error"
	case errors.Is(err, isolation.ErrTenantConflict):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, session.ErrNotFound), errors.Is(err, isolation.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, session.ErrInvalidArgument),
		errors.Is(err, identity.ErrInvalidArgument),
		errors.Is(err, audit.ErrInvalidEvent),
		errors.Is(err, isolation.ErrUnknownColumn):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, identity.ErrEmailTaken), errors.Is(err, isolation.ErrDuplicate):
		return http.StatusConflict, "already exists"
	case errors.Is(err, session.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "session store unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeAuthError rejects the request with a reason code the client can use to
// pick a re-authentication message.
func writeAuthError(c *gin.Context, ae *session.AuthError) {
	status := http.StatusUnauthorized
	if ae.Code == session.CodeUnverifiable {
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, gin.H{"error": "authentication required", "reason": string(ae.Code)})
}
