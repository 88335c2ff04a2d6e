package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("role not allowed")
	ErrAlreadyReversed   = errors.New("movement already reversed")
	ErrAlreadyDispatched = errors.New("order already has a delivery")
	ErrNotDeliverable    = errors.New("order is not a delivery order")
	ErrDeliveryFinished  = errors.New("delivery already finished")
	ErrDuplicateNumber   = errors.New("order number already taken")
)

// Validationf wraps ErrValidation with a reason, so callers can both
// errors.Is the class and show the detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// InsufficientStockError names the offending SKU and the shortfall so the
// caller can decide whether to retry with a smaller quantity.
type InsufficientStockError struct {
	SKUID     int64
	Name      string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Estoque insuficiente para %s. Atual: %d, Solicitado: %d",
		e.Name, e.Available, e.Requested)
}

type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("transição ilegal: %s -> %s", e.From, e.To)
}
