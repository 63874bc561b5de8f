package handlers

import (
	"context"
	"errors"
	"net/http"

	"strapisync/internal/connectors/medusa"
	"strapisync/internal/mirror"
	"strapisync/internal/services/strapi"
)

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, mirror.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, medusa.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, strapi.ErrUnhealthy), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, strapi.ErrLoginBackoff):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
