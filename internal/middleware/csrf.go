package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"crm-gin/internal/dto"

	"github.com/gin-gonic/gin"
)

// ===========================================================================
// CSRF Middleware
// Double submit cookie: the csrf_token cookie is readable by the dashboard
// and must be echoed in the X-CSRF-Token header of state-changing requests.
// Bearer-authenticated API clients carry no ambient credentials and skip it.
// ===========================================================================

const (
	CSRFCookieName  = "csrf_token"
	CSRFHeaderName  = "X-CSRF-Token"
	CSRFTokenLength = 32
)

func GenerateCSRFToken() (string, error) {
	b := make([]byte, CSRFTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// SetCSRFCookie stores the token in a cookie the frontend can read
func SetCSRFCookie(c *gin.Context, token string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CSRFCookieName, token, 86400*7, "/", "", secure, false)
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// CSRF checks the double submit token. Paths starting with one of
// exemptPrefixes (login, webhooks) are not checked.
func CSRF(exemptPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		for _, p := range exemptPrefixes {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}
		// no cookie session, nothing to forge
		if _, err := c.Cookie(AccessTokenCookie); err != nil {
			c.Next()
			return
		}

		cookieToken, err := c.Cookie(CSRFCookieName)
		if err != nil || cookieToken == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.Error("CSRF_MISSING", "Jeton CSRF manquant"))
			return
		}
		headerToken := c.GetHeader(CSRFHeaderName)
		if headerToken == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.Error("CSRF_MISSING", "En-tête CSRF manquant"))
			return
		}
		if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.Error("CSRF_INVALID", "Jeton CSRF invalide"))
			return
		}
		c.Next()
	}
}
