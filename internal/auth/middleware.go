package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// TokenFromRequest returns the session token from the Authorization header,
// falling back to the named cookie. The header wins when both are present.
func TokenFromRequest(c *gin.Context, cookieName string) (string, bool) {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if raw != "" {
		if !strings.HasPrefix(raw, bearerPrefix) {
			return "", false
		}
		tok := strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
		return tok, tok != ""
	}
	if cookieName == "" {
		return "", false
	}
	tok, err := c.Cookie(cookieName)
	if err != nil || tok == "" {
		return "", false
	}
	return tok, true
}
