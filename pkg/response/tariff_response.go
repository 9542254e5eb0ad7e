// Package response provides the standard API response envelope.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// Response is the standard API response structure.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta contains listing metadata.
type Meta struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit,omitempty"`
	Offset  int  `json:"offset,omitempty"`
	HasMore bool `json:"has_more"`
}

// OK returns a successful response.
func OK(c *fiber.Ctx, data any) error {
	return c.JSON(Response{
		Success: true,
		Data:    data,
	})
}

// OKWithMeta returns a successful response with listing metadata.
func OKWithMeta(c *fiber.Ctx, data any, meta *Meta) error {
	return c.JSON(Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

// Created returns a 201 created response.
func Created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Data:    data,
	})
}

// Error returns an error response.
func Error(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest returns a 400 bad request response.
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, "BAD_REQUEST", message)
}

// NotFound returns a 404 not found response.
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, "NOT_FOUND", message)
}

// InternalError returns a 500 internal server error response.
func InternalError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", message)
}

// PaginationParams holds listing parameters.
type PaginationParams struct {
	Limit  int
	Offset int
}

// GetPagination extracts limit/offset from the request with bounds.
func GetPagination(c *fiber.Ctx, defaultLimit, maxLimit int) PaginationParams {
	limit := c.QueryInt("limit", defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return PaginationParams{Limit: limit, Offset: offset}
}
