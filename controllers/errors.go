package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-ordering/cart"
	"github.com/yeremiapane/restaurant-ordering/services"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

var errInvalidID = errors.New("invalid id")

// statusFor maps a service error to the HTTP status it is answered with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrTableNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrMenuItemNotFound),
		errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrReconciliationNotFound),
		errors.Is(err, services.ErrNotificationNotFound),
		errors.Is(err, services.ErrNoMatch),
		errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound

	case errors.Is(err, services.ErrPaymentUnderReview),
		errors.Is(err, services.ErrAlreadyVerified),
		errors.Is(err, services.ErrTransactionClosed),
		errors.Is(err, services.ErrTransactionExpired),
		errors.Is(err, services.ErrOrderImmutable),
		errors.Is(err, services.ErrOrderNotPayable),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrPaymentNotVerified),
		errors.Is(err, services.ErrAmbiguousMatch),
		errors.Is(err, services.ErrReceiptUnavailable):
		return http.StatusConflict

	case errors.Is(err, services.ErrProofTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrNotAnImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, services.ErrQRISUnavailable),
		errors.Is(err, services.ErrNoBankAccount):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized

	case errors.Is(err, services.ErrMissingContext),
		errors.Is(err, services.ErrTableMismatch),
		errors.Is(err, services.ErrUnsupportedMethod),
		errors.Is(err, services.ErrTransactionMismatch),
		errors.Is(err, services.ErrNoActiveSession),
		errors.Is(err, services.ErrMenuItemUnavailable),
		errors.Is(err, services.ErrInvalidSelection),
		errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrEmptyProof),
		errors.Is(err, services.ErrInvalidDenomination),
		errors.Is(err, services.ErrNegativeCount),
		errors.Is(err, services.ErrInvalidShift),
		errors.Is(err, cart.ErrInvalidTable),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, errInvalidID):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondServiceError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		utils.ErrorLogger.WithField("path", c.FullPath()).Errorf("Request failed: %v", err)
	}
	utils.RespondError(c, code, err)
}

func uintParam(c *gin.Context, name string) (uint, error) {
	return parseID(c.Param(name))
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidID, raw)
	}
	return uint(id), nil
}
