package services

import "errors"

var (
	ErrTableNotFound       = errors.New("table not found")
	ErrNoActiveSession     = errors.New("table has no active session, scan the table QR first")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuItemUnavailable = errors.New("menu item is not available")
	ErrInvalidSelection    = errors.New("invalid customization selection")
	ErrEmptyCart           = errors.New("cart is empty")

	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderImmutable     = errors.New("order is already completed or cancelled")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrPaymentNotVerified = errors.New("order payment is not verified")

	ErrMissingContext      = errors.New("order and table are required to start a payment")
	ErrTableMismatch       = errors.New("order does not belong to this table")
	ErrOrderNotPayable     = errors.New("order cannot be paid")
	ErrUnsupportedMethod   = errors.New("unsupported payment method")
	ErrQRISUnavailable     = errors.New("QRIS payment is not configured")
	ErrNoBankAccount       = errors.New("no bank account configured for transfers")
	ErrPaymentUnderReview  = errors.New("a payment for this order is awaiting verification")
	ErrTransactionNotFound = errors.New("payment transaction not found")
	ErrTransactionMismatch = errors.New("payment does not belong to this order")
	ErrTransactionExpired  = errors.New("payment window has expired")
	ErrTransactionClosed   = errors.New("payment is no longer open")
	ErrAlreadyVerified     = errors.New("payment already verified")

	ErrNotAnImage    = errors.New("proof must be a jpeg, png or webp image")
	ErrProofTooLarge = errors.New("proof exceeds the 5MB limit")
	ErrEmptyProof    = errors.New("proof file is empty")

	ErrNoMatch        = errors.New("no open bank transfer matches this amount")
	ErrAmbiguousMatch = errors.New("more than one open bank transfer matches this amount")

	ErrInvalidDenomination    = errors.New("unknown cash denomination")
	ErrNegativeCount          = errors.New("denomination count cannot be negative")
	ErrInvalidShift           = errors.New("shift end must be after shift start")
	ErrReconciliationNotFound = errors.New("cash reconciliation not found")

	ErrReceiptUnavailable   = errors.New("receipt is only available for completed payments")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrNotificationNotFound = errors.New("notification not found")
)
