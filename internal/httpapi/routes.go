package httpapi

import (
	"academy-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register wires the academy API onto r. Every /v1 route runs behind
// requireSession, so its handlers always execute inside a tenant scope.
func Register(r gin.IRouter, h Handlers, requireSession gin.HandlerFunc) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.GET("/status", h.Status)
	}

	v1 := r.Group("/v1")
	v1.Use(requireSession, rbac.RequireTenant())
	{
		v1.POST("/auth/logout", h.Logout)
		v1.POST("/session/ping", h.Ping)
		v1.GET("/me", h.Me)

		sessions := v1.Group("/sessions")
		{
			sessions.GET("", h.ListSessions)
			sessions.DELETE("/:session_id", h.RevokeSession)
			sessions.POST("/revoke-others", h.RevokeOtherSessions)
		}

		v1.GET("/audit/events", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAdmin), h.ListAuditEvents)

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAdmin))
		{
			admin.DELETE("/sessions/:session_id", h.AdminRevokeSession)
		}
	}
}
