package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withCredentials(t *testing.T, admin, apiKey, secret string) {
	t.Helper()
	prevAdmin, prevKey, prevSecret := AdminSecretKey, APIKey, JWTSecretKey
	AdminSecretKey, APIKey, JWTSecretKey = admin, apiKey, secret
	t.Cleanup(func() {
		AdminSecretKey, APIKey, JWTSecretKey = prevAdmin, prevKey, prevSecret
	})
}

func clientApp() *fiber.App {
	app := fiber.New()
	app.Get("/api", ClientAuth(), func(c *fiber.Ctx) error {
		client, _ := c.Locals("client").(string)
		return c.SendString(client)
	})
	app.Get("/admin", AdminAuth(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app
}

func status(t *testing.T, app *fiber.App, path string, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestClientAuthOpenWhenUnconfigured(t *testing.T) {
	withCredentials(t, "", "", "")
	assert.Equal(t, http.StatusOK, status(t, clientApp(), "/api", nil))
}

func TestClientAuthAPIKey(t *testing.T) {
	withCredentials(t, "", "chave-erp", "")
	app := clientApp()

	assert.Equal(t, http.StatusUnauthorized, status(t, app, "/api", nil))
	assert.Equal(t, http.StatusUnauthorized, status(t, app, "/api", map[string]string{"X-API-Key": "errada"}))
	assert.Equal(t, http.StatusOK, status(t, app, "/api", map[string]string{"X-API-Key": "chave-erp"}))
}

func TestClientAuthBearer(t *testing.T) {
	withCredentials(t, "", "", "0123456789abcdef0123456789abcdef")
	app := clientApp()

	issued, err := GenerateClientToken("loja-centro", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "loja-centro", issued.Client)
	assert.NotEmpty(t, issued.TokenID)

	assert.Equal(t, http.StatusOK, status(t, app, "/api", map[string]string{"Authorization": "Bearer " + issued.Token}))
	assert.Equal(t, http.StatusUnauthorized, status(t, app, "/api", map[string]string{"Authorization": "Token " + issued.Token}))
	assert.Equal(t, http.StatusUnauthorized, status(t, app, "/api", map[string]string{"Authorization": "Bearer nope"}))
}

func TestValidateClientTokenRejectsExpiredAndForeign(t *testing.T) {
	withCredentials(t, "", "", "0123456789abcdef0123456789abcdef")

	issued, err := GenerateClientToken("loja", time.Hour)
	require.NoError(t, err)
	claims, err := ValidateClientToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "loja", claims.Client)

	expired, err := GenerateClientToken("loja", time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = ValidateClientToken(expired.Token)
	assert.Error(t, err)

	JWTSecretKey = "another-secret-another-secret-xx"
	_, err = ValidateClientToken(issued.Token)
	assert.Error(t, err)

	JWTSecretKey = ""
	_, err = GenerateClientToken("loja", 0)
	assert.ErrorIs(t, err, ErrJWTNotConfigured)
}

func TestAdminAuth(t *testing.T) {
	withCredentials(t, "", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status(t, clientApp(), "/admin", nil))

	withCredentials(t, "segredo", "", "")
	app := clientApp()
	assert.Equal(t, http.StatusUnauthorized, status(t, app, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, status(t, app, "/admin", map[string]string{"X-Admin-Secret": "x"}))
	assert.Equal(t, http.StatusNoContent, status(t, app, "/admin", map[string]string{"X-Admin-Secret": "segredo"}))
}
