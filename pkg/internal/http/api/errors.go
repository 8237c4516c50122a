package api

import (
	"errors"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/dispatch"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

// toHttpError picks the status code for a service error.
func toHttpError(err error) error {
	var pipelineErr *services.PipelineError
	var transportErr *dispatch.TransportError
	var serviceErr *dispatch.ServiceError

	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalid), errors.Is(err, dispatch.ErrNotCommand):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, dispatch.ErrRateLimited):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, services.ErrNoStorage), errors.Is(err, dispatch.ErrNotConfigured):
		return fiber.NewError(fiber.StatusNotImplemented, err.Error())
	case errors.As(err, &transportErr):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.As(err, &serviceErr):
		return fiber.NewError(fiber.StatusFailedDependency, serviceErr.Message)
	case errors.As(err, &pipelineErr):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
}
