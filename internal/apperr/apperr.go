package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a business-rule violation. Codes are stable: handlers and
// clients match on them, messages are free to change.
type Code string

const (
	CodeUserNotFound    Code = "USER_NOT_FOUND"
	CodeBookNotFound    Code = "BOOK_NOT_FOUND"
	CodeOrderNotFound   Code = "ORDER_NOT_FOUND"
	CodeAddressNotFound Code = "ADDRESS_NOT_FOUND"
	CodeVoucherNotFound Code = "VOUCHER_NOT_FOUND"

	CodeUnauthorized Code = "UNAUTHORIZED"

	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeInvalidOrderStatus Code = "INVALID_ORDER_STATUS"
	CodeCannotCancelOrder  Code = "CANNOT_CANCEL_ORDER"
	CodeInvalidQuantity    Code = "INVALID_QUANTITY"

	CodeInvalidDateRange              Code = "INVALID_DATE_RANGE"
	CodeInvalidDiscountPercent        Code = "INVALID_DISCOUNT_PERCENT"
	CodePromotionCodeExisted          Code = "PROMOTION_CODE_EXISTED"
	CodePromotionAlreadyDeleted       Code = "PROMOTION_ALREADY_DELETED"
	CodePromotionNotDeleted           Code = "PROMOTION_NOT_DELETED"
	CodeCannotUpdateDeletedPromotion  Code = "CANNOT_UPDATE_DELETED_PROMOTION"
	CodeCannotActivateFuturePromotion Code = "CANNOT_ACTIVATE_FUTURE_PROMOTION"
	CodeCannotActivateExpiredPromotion Code = "CANNOT_ACTIVATE_EXPIRED_PROMOTION"
	CodeVoucherExpired                Code = "VOUCHER_EXPIRED"
	CodeVoucherNotUsableYet           Code = "VOUCHER_NOT_USABLE_YET"

	CodePaymentLinkFailed Code = "PAYMENT_LINK_FAILED"
)

// Error carries a stable code alongside a human-readable message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the business code from err, or "" for non-business errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps a code to the status the API layer should respond with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeUserNotFound, CodeBookNotFound, CodeOrderNotFound,
		CodeAddressNotFound, CodeVoucherNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodePromotionCodeExisted:
		return http.StatusConflict
	case CodeInsufficientStock, CodeInvalidOrderStatus, CodeCannotCancelOrder,
		CodeInvalidQuantity, CodeInvalidDateRange, CodeInvalidDiscountPercent,
		CodePromotionAlreadyDeleted, CodePromotionNotDeleted,
		CodeCannotUpdateDeletedPromotion, CodeCannotActivateFuturePromotion,
		CodeCannotActivateExpiredPromotion, CodeVoucherExpired,
		CodeVoucherNotUsableYet:
		return http.StatusBadRequest
	case CodePaymentLinkFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
