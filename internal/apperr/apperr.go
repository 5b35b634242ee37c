// Package apperr defines the error taxonomy shared by the box office
// ledgers, orchestrators and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindBusinessRule Kind = "business_rule"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindExternal     Kind = "external"
	KindInternal     Kind = "internal"
)

type Code string

const (
	CodeInvalidInput          Code = "invalid_input"
	CodeInvalidQuantity       Code = "invalid_quantity"
	CodePaymentMethodDisabled Code = "payment_method_disabled"
	CodeInvalidQR             Code = "invalid_qr"

	CodeTicketTypeNotFound Code = "ticket_type_not_found"
	CodeTicketNotFound     Code = "ticket_not_found"
	CodePaymentNotFound    Code = "payment_not_found"
	CodeUserNotFound       Code = "user_not_found"
	CodeEventNotFound      Code = "event_not_found"

	CodeInsufficientInventory Code = "insufficient_inventory"
	CodeSaleWindowClosed      Code = "sale_window_closed"
	CodeTicketTypeInactive    Code = "ticket_type_inactive"
	CodeCapacityBelowSold     Code = "capacity_below_sold"

	CodeInvalidCoupon        Code = "invalid_coupon"
	CodeCouponExpired        Code = "coupon_expired"
	CodeCouponNotApplicable  Code = "coupon_not_applicable"
	CodeCouponExhausted      Code = "coupon_exhausted"
	CodeBelowMinimumPurchase Code = "below_minimum_purchase"

	CodeSelfReferral Code = "self_referral"

	CodeAlreadyCheckedIn    Code = "already_checked_in"
	CodeTicketNotValid      Code = "ticket_not_valid"
	CodePaymentNotCompleted Code = "payment_not_completed"

	CodeAlreadyRefunded   Code = "already_refunded"
	CodeRefundExceedsPaid Code = "refund_exceeds_paid"
	CodeTicketUsed        Code = "ticket_used"
	CodePaymentNotPending Code = "payment_not_pending"
	CodeNotRefundable     Code = "payment_not_refundable"

	CodeStateConflict Code = "state_conflict"

	CodePaymentDeclined    Code = "payment_declined"
	CodeGatewayTimeout     Code = "gateway_timeout"
	CodeGatewayUnavailable Code = "gateway_unavailable"

	CodeForbidden    Code = "forbidden"
	CodeUnauthorized Code = "unauthorized"

	CodeDeficitReversal Code = "deficit_reversal"
	CodeInternal        Code = "internal_error"
)

// Error is the typed error returned by every box office operation.
type Error struct {
	Kind      Kind
	Code      Code
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code so a detailed error still satisfies errors.Is
// against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Retryable: kind == KindConflict}
}

func Wrap(kind Kind, code Code, message string, err error) *Error {
	e := New(kind, code, message)
	e.Err = err
	return e
}

func Validation(code Code, message string) *Error {
	return New(KindValidation, code, message)
}

func BusinessRule(code Code, message string) *Error {
	return New(KindBusinessRule, code, message)
}

func NotFound(code Code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, CodeStateConflict, message)
}

func External(code Code, message string, retryable bool, err error) *Error {
	e := Wrap(KindExternal, code, message, err)
	e.Retryable = retryable
	return e
}

func Internal(err error) *Error {
	return Wrap(KindInternal, CodeInternal, "internal error", err)
}

// From returns err as *Error, converting unknown errors to KindInternal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidQuantity       = Validation(CodeInvalidQuantity, "quantity must be at least 1")
	ErrPaymentMethodDisabled = Validation(CodePaymentMethodDisabled, "payment method is disabled")
	ErrInvalidQR             = Validation(CodeInvalidQR, "qr payload could not be verified")

	ErrTicketTypeNotFound = NotFound(CodeTicketTypeNotFound, "ticket type not found")
	ErrTicketNotFound     = NotFound(CodeTicketNotFound, "ticket not found")
	ErrPaymentNotFound    = NotFound(CodePaymentNotFound, "payment not found")
	ErrUserNotFound       = NotFound(CodeUserNotFound, "user not found")
	ErrEventNotFound      = NotFound(CodeEventNotFound, "event not found")

	ErrInsufficientInventory = BusinessRule(CodeInsufficientInventory, "not enough tickets available")
	ErrSaleWindowClosed      = BusinessRule(CodeSaleWindowClosed, "ticket sales are closed")
	ErrTicketTypeInactive    = BusinessRule(CodeTicketTypeInactive, "ticket type is not active")
	ErrCapacityBelowSold     = BusinessRule(CodeCapacityBelowSold, "capacity cannot be lower than tickets sold")

	ErrInvalidCoupon        = BusinessRule(CodeInvalidCoupon, "coupon is not valid")
	ErrCouponExpired        = BusinessRule(CodeCouponExpired, "coupon is outside its validity window")
	ErrCouponNotApplicable  = BusinessRule(CodeCouponNotApplicable, "coupon does not apply to this event")
	ErrCouponExhausted      = BusinessRule(CodeCouponExhausted, "coupon usage limit reached")
	ErrBelowMinimumPurchase = BusinessRule(CodeBelowMinimumPurchase, "purchase amount is below the coupon minimum")

	ErrSelfReferral = BusinessRule(CodeSelfReferral, "users cannot refer themselves")

	ErrAlreadyCheckedIn    = BusinessRule(CodeAlreadyCheckedIn, "ticket already checked in")
	ErrTicketNotValid      = BusinessRule(CodeTicketNotValid, "ticket is cancelled or refunded")
	ErrPaymentNotCompleted = BusinessRule(CodePaymentNotCompleted, "ticket payment is not completed")

	ErrAlreadyRefunded   = BusinessRule(CodeAlreadyRefunded, "payment already refunded")
	ErrRefundExceedsPaid = BusinessRule(CodeRefundExceedsPaid, "refund amount exceeds the amount paid")
	ErrTicketUsed        = BusinessRule(CodeTicketUsed, "a checked-in ticket cannot be cancelled")
	ErrPaymentNotPending = BusinessRule(CodePaymentNotPending, "payment is not pending")
	ErrNotRefundable     = BusinessRule(CodeNotRefundable, "payment cannot be refunded in its current state")

	ErrStateConflict = Conflict("record changed concurrently, retry the operation")

	ErrForbidden = New(KindValidation, CodeForbidden, "actor is not allowed to perform this action")
)
