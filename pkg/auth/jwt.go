package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "erp-whatsapp-dispatcher"

var ErrJWTNotConfigured = errors.New("JWT_SECRET_KEY not configured")

// ClientTokenClaims identifies the ERP installation calling the API.
type ClientTokenClaims struct {
	Client string `json:"client"`
	jwt.RegisteredClaims
}

// IssuedToken is what the admin endpoint hands out.
type IssuedToken struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	Client    string    `json:"client"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GenerateClientToken signs an HS256 token for client valid for ttl, or
// TokenTTL when ttl is zero.
func GenerateClientToken(client string, ttl time.Duration) (IssuedToken, error) {
	if JWTSecretKey == "" {
		return IssuedToken{}, ErrJWTNotConfigured
	}
	if ttl <= 0 {
		ttl = TokenTTL
	}

	now := time.Now()
	claims := ClientTokenClaims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   client,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(JWTSecretKey))
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{
		Token:     signed,
		TokenID:   claims.ID,
		Client:    client,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ValidateClientToken verifies signature, issuer and expiry.
func ValidateClientToken(tokenString string) (*ClientTokenClaims, error) {
	if JWTSecretKey == "" {
		return nil, ErrJWTNotConfigured
	}

	token, err := jwt.ParseWithClaims(tokenString, &ClientTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(JWTSecretKey), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*ClientTokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token claims")
}
