package tenant

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const ginHostTenantKey = "host_tenant"

// FromHost resolves the academy named by the request subdomain and records it
// on the gin context. It does not bind a tenant scope: only verified token
// claims may do that for data access. Requests without a subdomain pass through.
func FromHost(reg Registry, baseDomain string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, ok := SubdomainFromHost(c.Request.Host, baseDomain)
		if !ok {
			c.Next()
			return
		}
		t, err := reg.Resolve(c.Request.Context(), sub)
		if err != nil {
			if errors.Is(err, ErrUnknownTenant) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown academy"})
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "tenant lookup failed"})
			return
		}
		c.Set(ginHostTenantKey, Context{TenantID: t.ID, Subdomain: t.Subdomain})
		c.Next()
	}
}

// HostTenant returns the tenant resolved by FromHost, if any.
func HostTenant(c *gin.Context) (Context, bool) {
	v, ok := c.Get(ginHostTenantKey)
	if !ok {
		return Context{}, false
	}
	tc, ok := v.(Context)
	return tc, ok && tc.TenantID != ""
}
