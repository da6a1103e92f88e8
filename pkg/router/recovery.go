package router

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/log"
)

// RecoveryMiddleware turns a panic into a 500 JSON response. The stack goes
// to the log only.
func RecoveryMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Print(c).
					WithField("panic", fmt.Sprintf("%v", rec)).
					WithField("stack", string(debug.Stack())).
					Error("panic recovered")
				err = respond(c, fiber.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", nil)
			}
		}()
		return c.Next()
	}
}
