package router

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

func HttpErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	errorCode := "INTERNAL_ERROR"
	switch code {
	case http.StatusNotFound:
		errorCode = "ENDPOINT_NOT_FOUND"
	case http.StatusRequestEntityTooLarge:
		errorCode = "PAYLOAD_TOO_LARGE"
	case http.StatusMethodNotAllowed:
		errorCode = "METHOD_NOT_ALLOWED"
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		errorCode = "TIMEOUT"
	default:
		if code < http.StatusInternalServerError {
			errorCode = "BAD_REQUEST"
		}
	}

	return respond(c, code, message, errorCode, nil)
}

// HttpNotFound answers unknown routes with the list of available endpoints.
func HttpNotFound(endpoints []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return respond(c, http.StatusNotFound, "Endpoint not found: "+c.Method()+" "+c.Path(), "ENDPOINT_NOT_FOUND", fiber.Map{
			"available_endpoints": endpoints,
		})
	}
}
