package model

import "fmt"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeCouponNotFound      = "COUPON_NOT_FOUND"
	ErrCodeCouponCodeTaken     = "COUPON_CODE_TAKEN"
	ErrCodeCouponNotRedeemable = "COUPON_NOT_REDEEMABLE"
	ErrCodePersistence         = "PERSISTENCE_FAILED"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrCouponNotFound      = NewDomainError(ErrCodeCouponNotFound, "Coupon not found")
	ErrCouponCodeTaken     = NewDomainError(ErrCodeCouponCodeTaken, "A coupon with this code already exists")
	ErrCouponNotRedeemable = NewDomainError(ErrCodeCouponNotRedeemable, "Coupon is expired, not started or exhausted")
)

// ValidationError reports malformed or out-of-range coupon attributes.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// PersistenceError reports that the store could not durably record a write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
