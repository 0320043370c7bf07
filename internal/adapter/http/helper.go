package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/collateral"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/loan"
)

// statusFor maps domain errors to HTTP codes. Collaborator failures are the
// upstream's fault, everything unrecognized is ours.
func statusFor(err error) int {
	var pe *collateral.ProviderError
	switch {
	case errors.Is(err, loan.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, loan.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, loan.ErrInsufficientCredit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, loan.ErrInvalidTransition),
		errors.Is(err, loan.ErrDuplicateID),
		errors.Is(err, loan.ErrInconsistentEvent):
		return http.StatusConflict
	case errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	return c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
}
