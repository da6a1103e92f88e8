package index

import (
	"time"

	"github.com/gofiber/fiber/v2"

	typDispatcher "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/types"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/router"
)

// Version is set at build time with -ldflags "-X ...index.Version=...".
var Version = "1.0.0"

var startedAt = time.Now()

// Uptime is the time elapsed since the process started.
func Uptime() time.Duration {
	return time.Since(startedAt)
}

// Index
// @Summary     Show The Status of The Server
// @Description Get The Server Status
// @Tags        Root
// @Produce     json
// @Success     200
// @Router      / [get]
func Index(c *fiber.Ctx) error {
	return router.ResponseSuccess(c, "ERP WhatsApp dispatcher is running")
}

// Health
// @Summary     Liveness Probe
// @Description Report process uptime and version
// @Tags        Root
// @Produce     json
// @Success     200 {object} typDispatcher.ResponseHealth
// @Router      /health [get]
func Health(c *fiber.Ctx) error {
	return router.ResponseSuccessWithData(c, "ok", typDispatcher.ResponseHealth{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(dispatch.TimestampLayout),
		Uptime:    Uptime().Seconds(),
		Version:   Version,
	})
}
