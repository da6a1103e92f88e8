// Package auth protects the HTTP API. ERP clients authenticate with a static
// API key or a bearer token minted through the admin endpoint; when neither
// is configured the API stays open, as on an isolated ERP network.
package auth

import (
	"time"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/env"
)

// AdminSecretKey guards the /admin routes.
var AdminSecretKey string

// APIKey is accepted in the X-API-Key header.
var APIKey string

// JWTSecretKey signs client bearer tokens.
var JWTSecretKey string

// TokenTTL is the default lifetime of a client token.
var TokenTTL time.Duration

func init() {
	AdminSecretKey, _ = env.GetEnvString("ADMIN_SECRET_KEY")
	APIKey, _ = env.GetEnvString("API_KEY")
	JWTSecretKey, _ = env.GetEnvString("JWT_SECRET_KEY")
	TokenTTL = env.GetEnvDurationOrDefault("JWT_TOKEN_TTL", 365*24*time.Hour)
}

// Enabled reports whether client routes require credentials.
func Enabled() bool {
	return APIKey != "" || JWTSecretKey != ""
}
