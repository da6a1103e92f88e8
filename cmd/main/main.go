package main

// @title ERP WhatsApp Report Dispatcher
// @version 1.0.0
// @description Sends ERP sales reports and ad hoc images, documents and text to WhatsApp groups and contacts through a single WhatsApp Web session

// @contact.name gdbrns
// @contact.url https://github.com/gdbrns/go-whatsapp-erp-dispatcher

// @license.name MIT

// @host localhost:3000
// @BasePath /

// @securityDefinitions.apikey AdminAuth
// @in header
// @name X-Admin-Secret
// @description Admin secret key for issuing client tokens

// @securityDefinitions.apikey APIKeyAuth
// @in header
// @name X-API-Key
// @description Static API key shared with the ERP

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token issued by /admin/tokens

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/env"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/log"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/router"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/internal"
)

type Server struct {
	Address string
	Port    string
}

func main() {
	var err error

	// Intialize Cron
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	// Running Startup Tasks
	ctxStartup, cancelStartup := context.WithTimeout(context.Background(), 2*time.Minute)
	svc, err := internal.Startup(ctxStartup)
	cancelStartup()
	if err != nil {
		log.Print(nil).Fatal(err.Error())
	}

	// Initialize Fiber
	app := fiber.New(fiber.Config{
		ErrorHandler:   router.HttpErrorHandler,
		BodyLimit:      router.BodyLimitBytes(),
		ReadBufferSize: 8192, // Increase from default 4096 to handle larger headers (JWT tokens)
	})

	// Request ID + panic recovery (structured JSON)
	app.Use(router.HttpRequestID())
	app.Use(router.RecoveryMiddleware())
	app.Use(router.HttpTimeout(router.RequestTimeout))

	// Router Compression
	app.Use(compress.New(compress.Config{
		Level: compress.Level(router.GZipLevel),
		Next: func(c *fiber.Ctx) bool {
			return strings.Contains(c.Path(), "docs")
		},
	}))

	// Router CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: router.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key, X-Admin-Secret, X-Request-ID",
		AllowMethods: "GET,POST",
	}))

	// Router Security
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))

	// Router RealIP + request context enrichment
	app.Use(router.HttpRealIP())

	// Router Default Handler
	app.Get("/favicon.ico", router.ResponseNoContent)

	// Load Internal Routes
	internal.Routes(app, internal.NewControllers(svc))

	// Running Routines Tasks
	internal.Routines(c, svc)

	// Get Server Configuration with defaults
	var serverConfig Server
	serverConfig.Address = env.GetEnvStringOrDefault("SERVER_ADDRESS", "0.0.0.0")
	serverConfig.Port = env.GetEnvStringOrDefault("SERVER_PORT", "3000")

	// Start Server
	go func() {
		if err := app.Listen(serverConfig.Address + ":" + serverConfig.Port); err != nil {
			log.Print(nil).Fatal(err.Error())
		}
	}()
	svc.Journal.Info("Servidor iniciado", map[string]interface{}{"port": serverConfig.Port})

	// Watch for Shutdown Signal
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigShutdown
	log.Print(nil).WithField("signal", sig.String()).Info("Shutting down")
	svc.Journal.Info("Iniciando graceful shutdown", map[string]interface{}{"signal": sig.String()})

	// Wait 5 Seconds Before Graceful Shutdown
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	// Try To Shutdown Server
	err = app.ShutdownWithContext(ctxShutdown)
	if err != nil {
		log.Print(nil).Error(err.Error())
	}

	// Try To Shutdown Cron
	<-c.Stop().Done()

	// Flush outcomes, then close the session and databases
	svc.Shutdown(ctxShutdown)
}
