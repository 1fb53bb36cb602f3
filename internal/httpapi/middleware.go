package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"academy-platform/internal/auth"
	"academy-platform/internal/metrics"
	"academy-platform/internal/session"
	"academy-platform/internal/tenant"
	"academy-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const ginSessionKey = "session"

// RequireSession authenticates the request and runs the rest of the chain
// inside a tenant scope built from the verified claims. This is the single
// place an authenticated request's tenant scope is established.
func RequireSession(svc *session.Service, cookieName string, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		tok, ok := auth.TokenFromRequest(c, cookieName)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "reason": string(session.CodeInvalidToken)})
			return
		}

		var opts []session.AuthOption
		host, onHost := tenant.HostTenant(c)
		if onHost {
			opts = append(opts, session.ExpectTenant(host.TenantID))
		}
		res, err := svc.Authenticate(c.Request.Context(), tok, modeFor(c.Request.Method), opts...)
		if m != nil {
			m.ObserveAuthenticate(start)
		}
		if err != nil {
			if ae, ok := session.AsAuthError(err); ok && ae.Code != session.CodeUnverifiable && !errors.Is(err, session.ErrTenantMismatch) {
				clearCookie(c, cookieName)
			}
			writeError(c, err)
			return
		}
		if onHost {
			res.Tenant.Subdomain = host.Subdomain
		}

		logger.SetIdentity(c, res.Tenant.TenantID, res.Principal.UserID)
		c.Set(ginSessionKey, res)

		orig := c.Request
		ctx := auth.WithPrincipal(orig.Context(), res.Principal)
		err = tenant.Run(ctx, res.Tenant, func(ctx context.Context) error {
			c.Request = orig.WithContext(ctx)
			c.Next()
			return nil
		})
		c.Request = orig
		if err != nil {
			switch {
			case errors.Is(err, tenant.ErrEmptyTenant):
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			default:
				_ = c.Error(err)
				c.Abort()
			}
		}
	}
}

// modeFor treats safe methods as read-only for the store failure policy.
func modeFor(method string) session.Mode {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return session.ModeRead
	default:
		return session.ModeMutate
	}
}

// sessionFrom returns the authentication result stored by RequireSession.
func sessionFrom(c *gin.Context) (session.Result, bool) {
	v, ok := c.Get(ginSessionKey)
	if !ok {
		return session.Result{}, false
	}
	res, ok := v.(session.Result)
	return res, ok
}
