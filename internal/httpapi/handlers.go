package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"academy-platform/internal/audit"
	"academy-platform/internal/auth"
	"academy-platform/internal/identity"
	"academy-platform/internal/session"
	"academy-platform/internal/tenant"
	"academy-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Sessions *session.Service
	Users    *identity.Service
	Audit    *audit.Service

	CookieName   string
	SecureCookie bool
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks credentials against the academy named by the host and opens a
// session. The user lookup runs in that academy's tenant scope.
func (h Handlers) Login(c *gin.Context) {
	host, ok := tenant.HostTenant(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "academy subdomain required"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	ctx := c.Request.Context()
	user, err := tenant.RunValue(ctx, host, func(ctx context.Context) (identity.User, error) {
		return h.Users.Authenticate(ctx, req.Email, req.Password)
	})
	if err != nil {
		writeError(c, err)
		return
	}

	out, err := h.Sessions.Login(ctx, session.LoginRequest{
		IssueRequest: auth.IssueRequest{
			UserID:   user.ID,
			TenantID: user.TenantID,
			Role:     user.Role,
			Name:     user.Name,
			Email:    user.Email,
		},
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	logger.FromGin(c).Info("login", "tenant_id", user.TenantID, "user_id", user.ID, "session_id", out.Session.ID)

	h.setCookie(c, out.Token, out.Claims)
	c.JSON(http.StatusOK, gin.H{
		"token":      out.Token,
		"session_id": out.Session.ID,
		"expires_at": out.Claims.ExpiresAt.Time,
	})
}

// Status reports whether the caller holds a live session. It never fails and
// never echoes token material.
func (h Handlers) Status(c *gin.Context) {
	tok, _ := auth.TokenFromRequest(c, h.CookieName)
	var opts []session.AuthOption
	if host, ok := tenant.HostTenant(c); ok {
		opts = append(opts, session.ExpectTenant(host.TenantID))
	}
	st := h.Sessions.Status(c.Request.Context(), tok, opts...)
	c.JSON(http.StatusOK, st)
}

func (h Handlers) Logout(c *gin.Context) {
	res, ok := sessionFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if err := h.Sessions.Logout(c.Request.Context(), res); err != nil {
		writeError(c, err)
		return
	}
	clearCookie(c, h.CookieName)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Ping records activity and hands back a token with a fresh last_activity.
func (h Handlers) Ping(c *gin.Context) {
	res, ok := sessionFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	tok, err := h.Sessions.Ping(c.Request.Context(), res)
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := c.Cookie(h.CookieName); err == nil {
		h.setCookie(c, tok, res.Claims)
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

// Me returns the caller's profile, read through the tenant-scoped directory.
func (h Handlers) Me(c *gin.Context) {
	ctx := c.Request.Context()
	tc, err := tenant.Current(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	u, err := h.Users.Get(ctx, p.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":    u.ID,
		"tenant_id":  tc.TenantID,
		"subdomain":  tc.Subdomain,
		"email":      u.Email,
		"name":       u.Name,
		"role":       u.Role,
		"session_id": p.SessionID,
	})
}

// --- Sessions ---

func (h Handlers) ListSessions(c *gin.Context) {
	res, ok := sessionFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	views, err := h.Sessions.ListActive(c.Request.Context(), res.Principal.UserID, res.Tenant.TenantID, res.Claims.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

func (h Handlers) RevokeSession(c *gin.Context) {
	res, ok := sessionFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id := c.Param("session_id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "session_id required"})
		return
	}
	if err := h.Sessions.RevokeOwn(c.Request.Context(), res, id); err != nil {
		writeError(c, err)
		return
	}
	if id == res.Claims.ID {
		clearCookie(c, h.CookieName)
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

// RevokeOtherSessions signs the caller out everywhere except this device.
func (h Handlers) RevokeOtherSessions(c *gin.Context) {
	res, ok := sessionFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	sum, err := h.Sessions.RevokeOthers(c.Request.Context(), res)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Admin ---

// AdminRevokeSession signs out any session of the caller's academy.
// RBAC: owner, admin or super_admin.
func (h Handlers) AdminRevokeSession(c *gin.Context) {
	res, ok := sessionFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id := c.Param("session_id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "session_id required"})
		return
	}
	if err := h.Sessions.RevokeAny(c.Request.Context(), res, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

// ListAuditEvents returns the newest audit events of the caller's academy.
func (h Handlers) ListAuditEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	events, err := h.Audit.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// --- Cookies ---

func (h Handlers) setCookie(c *gin.Context, tok string, claims auth.Claims) {
	if h.CookieName == "" {
		return
	}
	maxAge := 0
	if claims.ExpiresAt != nil && claims.IssuedAt != nil {
		maxAge = int(claims.ExpiresAt.Sub(claims.IssuedAt.Time).Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.CookieName, tok, maxAge, "/", "", h.SecureCookie, true)
}

func clearCookie(c *gin.Context, name string) {
	if name == "" {
		return
	}
	if _, err := c.Cookie(name); err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", false, true)
}
