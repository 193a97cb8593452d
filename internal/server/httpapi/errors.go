package httpapi

import (
	"errors"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/gofiber/fiber/v2"
)

var kindStatus = map[string]int{
	"not_found":           fiber.StatusNotFound,
	"expired":             fiber.StatusGone,
	"exhausted":           fiber.StatusGone,
	"conflict":            fiber.StatusConflict,
	"remote_unavailable":  fiber.StatusServiceUnavailable,
	"invalid_credentials": fiber.StatusUnauthorized,
	"validation":          fiber.StatusBadRequest,
	"unauthorized":        fiber.StatusUnauthorized,
	"forbidden":           fiber.StatusForbidden,
	"internal":            fiber.StatusInternalServerError,
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorHandler renders every error as {"error": kind, "message": msg}.
// Internal failures are logged and their message is not exposed.
func errorHandler(logger logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errorResponse{Error: "http", Message: fe.Message})
		}

		kind := common.Kind(err)
		code := kindStatus[kind]
		msg := err.Error()
		if code == fiber.StatusInternalServerError {
			logger.Error(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
			msg = common.ErrorInternal.Error()
		}
		return c.Status(code).JSON(errorResponse{Error: kind, Message: msg})
	}
}
