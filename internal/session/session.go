package session

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/index"
	typDispatcher "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/types"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/log"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/router"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/whatsapp"
)

// Session is the part of the WhatsApp session the endpoints read.
type Session interface {
	dispatch.SessionGateway
	Status() pkgWhatsApp.Status
	Groups(ctx context.Context, withParticipants bool) ([]pkgWhatsApp.GroupSummary, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Normalizer interface {
	Normalize(raw string) (dispatch.CanonicalAddress, error)
}

type Controller struct {
	session    Session
	directory  Pinger
	normalizer Normalizer
	sinks      []string
}

// NewController wires the session endpoints. directory may be nil when no
// company database is configured.
func NewController(session Session, directory Pinger, normalizer Normalizer, sinks []string) *Controller {
	return &Controller{session: session, directory: directory, normalizer: normalizer, sinks: sinks}
}

func (ctl *Controller) checkDirectory(ctx context.Context) typDispatcher.ResponseConnectionCheck {
	if ctl.directory == nil {
		return typDispatcher.ResponseConnectionCheck{Message: "Company directory is not configured"}
	}
	if err := ctl.directory.Ping(ctx); err != nil {
		return typDispatcher.ResponseConnectionCheck{Message: err.Error()}
	}
	return typDispatcher.ResponseConnectionCheck{Success: true, Message: "Database connection OK"}
}

func (ctl *Controller) checkSession() typDispatcher.ResponseConnectionCheck {
	status := ctl.session.Status()
	if !status.Ready {
		return typDispatcher.ResponseConnectionCheck{Message: "WhatsApp não está conectado", Detail: status}
	}
	return typDispatcher.ResponseConnectionCheck{Success: true, Message: "WhatsApp conectado", Detail: status}
}

// TestConnection
// @Summary     Test Connections
// @Description Check the company database and the WhatsApp session
// @Tags        Session
// @Produce     json
// @Success     200
// @Failure     503 {object} router.Response
// @Router      /api/teste-conexao [get]
func (ctl *Controller) TestConnection(c *fiber.Ctx) error {
	db := ctl.checkDirectory(router.RequestContext(c))
	wa := ctl.checkSession()
	tests := fiber.Map{
		"database":  db,
		"whatsapp":  wa,
		"timestamp": time.Now().UTC().Format(dispatch.TimestampLayout),
	}

	if !db.Success || !wa.Success {
		return router.ResponseServiceUnavailable(c, "Algumas conexões com problema", tests)
	}
	return router.ResponseSuccessWithData(c, "Todas as conexões OK", tests)
}

// ListGroups
// @Summary     List Groups
// @Description List the WhatsApp groups the session belongs to
// @Tags        Session
// @Produce     json
// @Param       participants query bool false "Include participants"
// @Success     200
// @Failure     503 {object} router.Response
// @Router      /api/grupos [get]
func (ctl *Controller) ListGroups(c *fiber.Ctx) error {
	if !ctl.session.IsReady() {
		return router.ResponseError(c, http.StatusServiceUnavailable, "WHATSAPP_DISCONNECTED", "WhatsApp não está conectado", nil)
	}

	groups, err := ctl.session.Groups(router.RequestContext(c), c.QueryBool("participants", false))
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to list groups")
		return router.ResponseError(c, http.StatusBadGateway, "WHATSAPP_ERROR", "Failed to list groups", nil)
	}

	return router.ResponseSuccessWithData(c, "Groups", fiber.Map{
		"count":  len(groups),
		"grupos": groups,
	})
}

// ChatInfo
// @Summary     Chat Lookup
// @Description Normalize a destination and show whether the session can reach it
// @Tags        Session
// @Produce     json
// @Param       destination path string true "Phone number or group id"
// @Success     200 {object} typDispatcher.ResponseChatInfo
// @Failure     400 {object} router.Response
// @Failure     503 {object} router.Response
// @Router      /api/chats/{destination} [get]
func (ctl *Controller) ChatInfo(c *fiber.Ctx) error {
	destination := c.Params("destination")
	addr, err := ctl.normalizer.Normalize(destination)
	if err != nil {
		return router.ResponseError(c, http.StatusBadRequest, string(dispatch.KindOf(err)), err.Error(), nil)
	}
	if !ctl.session.IsReady() {
		return router.ResponseError(c, http.StatusServiceUnavailable, "WHATSAPP_DISCONNECTED", "WhatsApp não está conectado", nil)
	}

	ctx := router.RequestContext(c)
	convs, err := ctl.session.ListConversations(ctx)
	if err != nil {
		log.DispatchOp("ChatInfo", destination).WithError(err).Error("Failed to list conversations")
		return router.ResponseError(c, http.StatusBadGateway, "WHATSAPP_ERROR", "Failed to list conversations", nil)
	}

	info := typDispatcher.ResponseChatInfo{
		Destination: destination,
		ChatID:      addr.PlatformID,
		Kind:        string(addr.Kind),
		IsGroup:     addr.IsGroup(),
	}
	for _, conv := range convs {
		if conv.ID == addr.PlatformID {
			info.Found = true
			info.Name = conv.Name
			info.Participants = len(conv.Participants)
			break
		}
	}

	if checker, ok := ctl.session.(dispatch.RegistrationChecker); ok && !info.Found && !addr.IsGroup() {
		if registered, err := checker.CheckRegistered(ctx, addr.PlatformID); err == nil {
			info.Registered = &registered
		} else {
			log.DispatchOp("ChatInfo", destination).WithError(err).Warn("Registration check failed")
		}
	}

	return router.ResponseSuccessWithData(c, "Chat information", info)
}

// Status
// @Summary     System Status
// @Description Show the WhatsApp session state and process runtime information
// @Tags        Session
// @Produce     json
// @Success     200
// @Router      /api/status [get]
func (ctl *Controller) Status(c *fiber.Ctx) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return router.ResponseSuccessWithData(c, "Status", fiber.Map{
		"timestamp": time.Now().UTC().Format(dispatch.TimestampLayout),
		"services": fiber.Map{
			"whatsapp": ctl.session.Status(),
			"outcomes": ctl.sinks,
		},
		"system": fiber.Map{
			"goVersion":  runtime.Version(),
			"platform":   runtime.GOOS + "/" + runtime.GOARCH,
			"uptime":     index.Uptime().Seconds(),
			"goroutines": runtime.NumGoroutine(),
			"memory": fiber.Map{
				"heapAlloc": humanize.IBytes(mem.HeapAlloc),
				"sys":       humanize.IBytes(mem.Sys),
				"numGC":     mem.NumGC,
			},
		},
	})
}
