package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/auth"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/router"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/whatsapp"
)

type fakeVersion struct {
	status pkgWhatsApp.VersionStatus
	err    error
	forced bool
}

func (f *fakeVersion) Status() pkgWhatsApp.VersionStatus { return f.status }

func (f *fakeVersion) Refresh(_ context.Context, force bool) (pkgWhatsApp.VersionStatus, bool, error) {
	f.forced = force
	return f.status, f.err == nil, f.err
}

func withSecret(t *testing.T, secret string) {
	t.Helper()
	prev := auth.JWTSecretKey
	auth.JWTSecretKey = secret
	t.Cleanup(func() { auth.JWTSecretKey = prev })
}

func newApp(v *fakeVersion) *fiber.App {
	ctl := NewController(v)
	app := fiber.New(fiber.Config{ErrorHandler: router.HttpErrorHandler})
	app.Post("/admin/tokens", ctl.IssueToken)
	app.Get("/admin/whatsapp/version", ctl.GetWhatsAppWebVersion)
	app.Post("/admin/whatsapp/version/refresh", ctl.RefreshWhatsAppWebVersion)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, router.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out router.Response
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp, out
}

func TestIssueToken(t *testing.T) {
	withSecret(t, "test-secret")

	resp, out := do(t, newApp(&fakeVersion{}), http.MethodPost, "/admin/tokens", `{"client":"loja-centro","ttl":"48h"}`)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := out.Data.(map[string]interface{})
	token := data["token"].(string)

	claims, err := auth.ValidateClientToken(token)
	require.NoError(t, err)
	assert.Equal(t, "loja-centro", claims.Client)
}

func TestIssueTokenRejectsInput(t *testing.T) {
	withSecret(t, "test-secret")
	app := newApp(&fakeVersion{})

	resp, _ := do(t, app, http.MethodPost, "/admin/tokens", `{"client":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/admin/tokens", `{"client":"erp","ttl":"forever"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIssueTokenWithoutSecret(t *testing.T) {
	withSecret(t, "")

	resp, out := do(t, newApp(&fakeVersion{}), http.MethodPost, "/admin/tokens", `{"client":"erp"}`)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "SERVICE_UNAVAILABLE", out.ErrorCode)
}

func TestVersionEndpoints(t *testing.T) {
	v := &fakeVersion{status: pkgWhatsApp.VersionStatus{Current: "2.3000.1"}}
	app := newApp(v)

	resp, out := do(t, app, http.MethodGet, "/admin/whatsapp/version", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2.3000.1", out.Data.(map[string]interface{})["current"])

	resp, out = do(t, app, http.MethodPost, "/admin/whatsapp/version/refresh?force=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, v.forced)
	assert.Equal(t, true, out.Data.(map[string]interface{})["refreshed"])

	v.err = errors.New("upstream unavailable")
	resp, out = do(t, app, http.MethodPost, "/admin/whatsapp/version/refresh", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "VERSION_REFRESH_FAILED", out.ErrorCode)
}
