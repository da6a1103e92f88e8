package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/router"
)

// AdminAuth validates the X-Admin-Secret header for admin endpoints
func AdminAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if AdminSecretKey == "" {
			return router.ResponseServiceUnavailable(c, "Admin secret key not configured", nil)
		}

		adminSecret := c.Get("X-Admin-Secret")
		if adminSecret == "" {
			return router.ResponseUnauthorized(c, "Missing X-Admin-Secret header")
		}

		if subtle.ConstantTimeCompare([]byte(adminSecret), []byte(AdminSecretKey)) != 1 {
			return router.ResponseUnauthorized(c, "Invalid admin secret")
		}

		return c.Next()
	}
}

// ClientAuth accepts either the configured X-API-Key or a client bearer
// token. It lets every request through when no credential is configured.
func ClientAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !Enabled() {
			return c.Next()
		}

		if apiKey := c.Get("X-API-Key"); apiKey != "" {
			if APIKey != "" && subtle.ConstantTimeCompare([]byte(apiKey), []byte(APIKey)) == 1 {
				c.Locals("client", "api-key")
				return c.Next()
			}
			return router.ResponseUnauthorized(c, "Invalid API key")
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return router.ResponseUnauthorized(c, "Missing X-API-Key or Authorization header")
		}

		scheme, tokenString, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenString) == "" {
			return router.ResponseUnauthorized(c, "Invalid Authorization header format. Use: Bearer <token>")
		}

		claims, err := ValidateClientToken(strings.TrimSpace(tokenString))
		if err != nil {
			return router.ResponseUnauthorized(c, "Invalid or expired token")
		}

		c.Locals("client", claims.Client)
		c.Locals("token_id", claims.ID)
		return c.Next()
	}
}
