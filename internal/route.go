package internal

import (
	"github.com/gofiber/fiber/v2"
	swagger "github.com/gofiber/swagger"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/auth"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/router"

	ctlActivity "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/activity"
	ctlAdmin "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/admin"
	ctlIndex "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/index"
	ctlMessaging "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/messaging"
	ctlReport "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/report"
	ctlSession "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/session"
)

// Endpoints is what unknown routes are answered with.
var Endpoints = []string{
	"POST /api/enviar-imagem",
	"POST /api/enviar-relatorio",
	"GET /api/teste-conexao",
	"GET /api/grupos",
	"GET /api/chats/:destination",
	"GET /api/empresa/:cnpj",
	"GET /api/relatorios",
	"GET /api/status",
	"GET /api/logs",
	"GET /health",
	"GET /docs",
}

type Controllers struct {
	Messaging *ctlMessaging.Controller
	Report    *ctlReport.Controller
	Session   *ctlSession.Controller
	Activity  *ctlActivity.Controller
	Admin     *ctlAdmin.Controller
}

func NewControllers(svc *Services) Controllers {
	var dir ctlReport.Directory
	var pinger ctlSession.Pinger
	if svc.Directory != nil {
		dir = svc.Directory
		pinger = svc.Directory
	}

	return Controllers{
		Messaging: ctlMessaging.NewController(svc.Dispatcher, svc.Publisher),
		Report:    ctlReport.NewController(dir, svc.Artifacts, svc.Gateway, svc.Dispatcher, svc.Publisher, svc.Journal),
		Session:   ctlSession.NewController(svc.Session, pinger, svc.Dispatcher, svc.Publisher.Sinks()),
		Activity:  ctlActivity.NewController(svc.Journal),
		Admin:     ctlAdmin.NewController(svc.Session.Version()),
	}
}

func Routes(app *fiber.App, ctl Controllers) {
	// Configure OpenAPI / Swagger
	specURL := router.BaseURL + "/docs/swagger.json"
	swaggerHandler := swagger.New(swagger.Config{
		URL: specURL,
	})

	// Route for Index
	// ---------------------------------------------
	if router.BaseURL == "" {
		app.Get("/", ctlIndex.Index)
	} else {
		app.Get(router.BaseURL, ctlIndex.Index)
		app.Get(router.BaseURL+"/", ctlIndex.Index)
	}
	app.Get(router.BaseURL+"/health", ctlIndex.Health)

	// Route for OpenAPI / Swagger
	// ---------------------------------------------
	app.Get(router.BaseURL+"/docs/swagger.json", func(c *fiber.Ctx) error {
		return c.SendFile("docs/swagger.json")
	})
	app.Get(router.BaseURL+"/docs/*", swaggerHandler)

	// Admin routes (X-Admin-Secret)
	// ---------------------------------------------
	adminMiddleware := auth.AdminAuth()
	app.Post(router.BaseURL+"/admin/tokens", adminMiddleware, ctl.Admin.IssueToken)
	app.Get(router.BaseURL+"/admin/whatsapp/version", adminMiddleware, ctl.Admin.GetWhatsAppWebVersion)
	app.Post(router.BaseURL+"/admin/whatsapp/version/refresh", adminMiddleware, ctl.Admin.RefreshWhatsAppWebVersion)

	// ERP routes (X-API-Key or bearer token when configured)
	// ---------------------------------------------
	api := app.Group(router.BaseURL+"/api", auth.ClientAuth())
	cached := router.HttpCacheInMemory(router.CacheTTLSeconds)

	api.Post("/enviar-imagem", ctl.Messaging.SendMessage)
	api.Post("/enviar-relatorio", ctl.Report.SendReport)
	api.Get("/empresa/:cnpj", ctl.Report.CompanyInfo)
	api.Get("/relatorios", cached, ctl.Report.ListReports)

	api.Get("/teste-conexao", ctl.Session.TestConnection)
	api.Get("/grupos", cached, ctl.Session.ListGroups)
	api.Get("/chats/:destination", ctl.Session.ChatInfo)
	api.Get("/status", ctl.Session.Status)

	api.Get("/logs", ctl.Activity.RecentLogs)

	app.Use(router.HttpNotFound(Endpoints))
}
