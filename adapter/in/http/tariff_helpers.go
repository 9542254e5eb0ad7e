// Package http contains the inbound HTTP handlers.
package http

import (
	"tariff_server/pkg/apperr"
	"tariff_server/pkg/logger"
	"tariff_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AppErrorResponse maps a typed application error onto the response
// envelope with its own HTTP status.
func AppErrorResponse(c *fiber.Ctx, err error) error {
	appErr := apperr.AsAppError(err)
	return response.Error(c, appErr.Status, appErr.Code, appErr.Message)
}

// InternalErrorResponse logs the real error and returns a generic 500 so
// internals never leak to clients.
func InternalErrorResponse(c *fiber.Ctx, err error, operation string) error {
	logger.WithError(err).WithField("operation", operation).Error("internal error")
	return response.Error(c, fiber.StatusInternalServerError, apperr.CodeInternalError, operation+" failed")
}
