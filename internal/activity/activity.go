package activity

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/log"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/router"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/validation"
)

const maxEntries = 100

type Controller struct {
	journal *log.Journal
}

func NewController(journal *log.Journal) *Controller {
	return &Controller{journal: journal}
}

// RecentLogs
// @Summary     Recent Activity
// @Description List the newest activity journal entries of the last hours
// @Tags        Activity
// @Produce     json
// @Param       hours query int false "Window in hours" default(24)
// @Success     200
// @Router      /api/logs [get]
func (ctl *Controller) RecentLogs(c *fiber.Ctx) error {
	hours := validation.ValidateHours(c.QueryInt("hours", 24))

	entries, err := ctl.journal.Recent(hours)
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to read activity journal")
		return router.ResponseInternalError(c, "Failed to read activity journal")
	}

	count := len(entries)
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	if entries == nil {
		entries = []log.Entry{}
	}

	return router.ResponseSuccessWithData(c, "Recent activity", fiber.Map{
		"count": count,
		"hours": hours,
		"logs":  entries,
	})
}
