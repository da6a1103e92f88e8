package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/log"
)

type Response struct {
	Status    bool        `json:"status"`
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	ErrorCode string      `json:"error_code,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func logSuccess(c *fiber.Ctx, code int, message string) {
	statusMessage := http.StatusText(code)

	if statusMessage == message || c.OriginalURL() == BaseURL {
		log.Print(c).Info(fmt.Sprintf("%d %v", code, statusMessage))
	} else {
		log.Print(c).Info(fmt.Sprintf("%d %v", code, message))
	}
}

func logError(c *fiber.Ctx, code int, message string) {
	entry := log.Print(c)
	if code < http.StatusInternalServerError {
		entry.Warn(fmt.Sprintf("%d %v", code, message))
		return
	}
	entry.Error(fmt.Sprintf("%d %v", code, message))
}

func respond(c *fiber.Ctx, code int, message string, errorCode string, data interface{}) error {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(code)
	}

	response := Response{
		Status:  code < http.StatusBadRequest,
		Code:    code,
		Message: message,
		Data:    data,
	}

	if response.Status {
		logSuccess(c, code, message)
	} else {
		response.ErrorCode = errorCode
		response.Error = message
		logError(c, code, message)
	}
	return c.Status(code).JSON(response)
}

func ResponseSuccess(c *fiber.Ctx, message string) error {
	return respond(c, http.StatusOK, message, "", nil)
}

func ResponseSuccessWithData(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, http.StatusOK, message, "", data)
}

func ResponseCreatedWithData(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, http.StatusCreated, message, "", data)
}

func ResponseNoContent(c *fiber.Ctx) error {
	return c.SendStatus(http.StatusNoContent)
}

// ResponseError answers with a failure carrying a machine readable code and
// optional details.
func ResponseError(c *fiber.Ctx, code int, errorCode string, message string, data interface{}) error {
	return respond(c, code, message, errorCode, data)
}

func ResponseNotFound(c *fiber.Ctx, message string) error {
	return respond(c, http.StatusNotFound, message, "NOT_FOUND", nil)
}

func ResponseUnauthorized(c *fiber.Ctx, message string) error {
	return respond(c, http.StatusUnauthorized, message, "UNAUTHORIZED", nil)
}

func ResponseBadRequest(c *fiber.Ctx, message string) error {
	return respond(c, http.StatusBadRequest, message, "BAD_REQUEST", nil)
}

func ResponseInternalError(c *fiber.Ctx, message string) error {
	return respond(c, http.StatusInternalServerError, message, "INTERNAL_ERROR", nil)
}

func ResponseBadGateway(c *fiber.Ctx, message string) error {
	return respond(c, http.StatusBadGateway, message, "BAD_GATEWAY", nil)
}

func ResponseServiceUnavailable(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, http.StatusServiceUnavailable, message, "SERVICE_UNAVAILABLE", data)
}

// ResponseOutcome answers with a dispatch outcome, using the status its
// error kind maps to.
func ResponseOutcome(c *fiber.Ctx, outcome dispatch.Outcome) error {
	if outcome.Success {
		return respond(c, http.StatusOK, "Message sent", "", outcome)
	}

	message := "Dispatch failed"
	errorCode := string(dispatch.Internal)
	if outcome.Error != nil {
		message = outcome.Error.Message
		errorCode = string(outcome.Error.Kind)
	}
	return respond(c, outcome.HTTPStatus(), message, errorCode, outcome)
}
