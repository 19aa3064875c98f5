package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"ai-deepsearch-be/internal/service"
	"ai-deepsearch-be/pkg/store"
)

// toHTTPError maps engine and service errors onto transport status codes.
// Anything unrecognized falls through to the error handler middleware as a
// 500.
func toHTTPError(err error) error {
	var verr *store.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	case errors.As(err, &verr):
		return fiber.NewError(fiber.StatusBadRequest, verr.Error())
	case errors.Is(err, service.ErrArchiveDisabled):
		return fiber.NewError(fiber.StatusServiceUnavailable, service.ErrArchiveDisabled.Error())
	}
	return err
}
