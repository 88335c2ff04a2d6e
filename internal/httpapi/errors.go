package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"burger-house/internal/domain"
)

// writeError maps domain errors onto HTTP statuses and renders the uniform
// error body.
func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var (
		stock      *domain.InsufficientStockError
		transition *domain.IllegalTransitionError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &stock):
		return http.StatusConflict
	case errors.As(err, &transition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAlreadyReversed),
		errors.Is(err, domain.ErrAlreadyDispatched),
		errors.Is(err, domain.ErrNotDeliverable),
		errors.Is(err, domain.ErrDeliveryFinished),
		errors.Is(err, domain.ErrDuplicateNumber):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
