package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	typDispatcher "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/types"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/auth"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/log"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/router"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/validation"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/whatsapp"
)

type VersionRefresher interface {
	Status() pkgWhatsApp.VersionStatus
	Refresh(ctx context.Context, force bool) (pkgWhatsApp.VersionStatus, bool, error)
}

type Controller struct {
	version VersionRefresher
}

func NewController(version VersionRefresher) *Controller {
	return &Controller{version: version}
}

// @Summary     Issue Client Token
// @Description Mint a bearer token for an ERP installation (Admin only)
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Param       body body typDispatcher.RequestIssueToken true "Client name and optional ttl such as 720h"
// @Success     201 {object} auth.IssuedToken
// @Failure     400 {object} router.Response
// @Failure     401 {object} router.Response
// @Failure     503 {object} router.Response
// @Router      /admin/tokens [post]
func (ctl *Controller) IssueToken(c *fiber.Ctx) error {
	var req typDispatcher.RequestIssueToken
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Invalid request body")
	}
	if err := validation.ValidateClientName(req.Client); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	var ttl time.Duration
	if raw := strings.TrimSpace(req.TTL); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return router.ResponseBadRequest(c, "ttl must be a positive duration such as 720h")
		}
		ttl = parsed
	}

	token, err := auth.GenerateClientToken(strings.TrimSpace(req.Client), ttl)
	if errors.Is(err, auth.ErrJWTNotConfigured) {
		return router.ResponseServiceUnavailable(c, err.Error(), nil)
	}
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to sign client token")
		return router.ResponseInternalError(c, "Failed to sign client token")
	}

	log.Print(c).WithField("client", token.Client).WithField("token_id", token.TokenID).Info("Issued client token")
	return router.ResponseCreatedWithData(c, "Token issued", token)
}

// @Summary     WhatsApp Web Version
// @Description Show the WhatsApp Web version the session advertises (Admin only)
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Success     200 {object} pkgWhatsApp.VersionStatus
// @Router      /admin/whatsapp/version [get]
func (ctl *Controller) GetWhatsAppWebVersion(c *fiber.Ctx) error {
	return router.ResponseSuccessWithData(c, "WhatsApp Web version", ctl.version.Status())
}

// @Summary     Refresh WhatsApp Web Version
// @Description Fetch the latest WhatsApp Web version and apply it (Admin only)
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Param       force query bool false "Ignore the minimum refresh interval"
// @Success     200 {object} pkgWhatsApp.VersionStatus
// @Failure     502 {object} router.Response
// @Router      /admin/whatsapp/version/refresh [post]
func (ctl *Controller) RefreshWhatsAppWebVersion(c *fiber.Ctx) error {
	force := c.QueryBool("force", false)
	status, refreshed, err := ctl.version.Refresh(router.RequestContext(c), force)
	if err != nil {
		log.Print(c).WithError(err).Error("WA Web version refresh failed")
		return router.ResponseError(c, http.StatusBadGateway, "VERSION_REFRESH_FAILED", err.Error(), status)
	}
	return router.ResponseSuccessWithData(c, "WhatsApp Web version refreshed", fiber.Map{
		"refreshed": refreshed,
		"force":     force,
		"version":   status,
	})
}
