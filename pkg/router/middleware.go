package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

func HttpRealIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		xForwardedFor := c.Get(http.CanonicalHeaderKey("X-Forwarded-For"))
		if xForwardedFor != "" {
			first, _, _ := strings.Cut(xForwardedFor, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				c.Locals("remote_ip", ip)
			}
		} else if xRealIP := strings.TrimSpace(c.Get(http.CanonicalHeaderKey("X-Real-IP"))); xRealIP != "" {
			c.Locals("remote_ip", xRealIP)
		}
		return c.Next()
	}
}

// HttpRequestID keeps an incoming X-Request-ID or assigns a new one, and
// echoes it on the response.
func HttpRequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Locals("request_id", id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}

// HttpTimeout bounds the user context of every request. Handlers pass it on
// to blocking calls.
func HttpTimeout(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if timeout <= 0 {
			return c.Next()
		}
		parent := c.UserContext()
		if parent == nil {
			parent = context.Background()
		}
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// RequestContext returns the request user context, never nil.
func RequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
