package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrSettlementNotFound       = errors.New("settlement not found")
	ErrSettlementAlreadyExists  = errors.New("settlement already exists")
	ErrSettlementAlreadySettled = errors.New("settlement is already settled")
	ErrPartyNotFound            = errors.New("taxi party not found")
	ErrParticipantNotFound      = errors.New("participant not found")
	ErrAmountMismatch           = errors.New("participant amounts must sum to the total fare")
	ErrDuplicateParticipant     = errors.New("participant is listed more than once")
	ErrRemindCooldown           = errors.New("remind is on cooldown")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeSettlementNotFound       = "SETTLEMENT_NOT_FOUND"
	ErrCodeSettlementAlreadyExists  = "SETTLEMENT_ALREADY_EXISTS"
	ErrCodeSettlementAlreadySettled = "SETTLEMENT_ALREADY_SETTLED"
	ErrCodePartyNotFound            = "PARTY_NOT_FOUND"
	ErrCodeParticipantNotFound      = "PARTICIPANT_NOT_FOUND"
	ErrCodeNoCompanions             = "NO_COMPANIONS"
	ErrCodeDuplicateParticipant     = "DUPLICATE_PARTICIPANT"
	ErrCodeNoHost                   = "NO_HOST"
	ErrCodeInvalidFare              = "INVALID_FARE"
	ErrCodeAmountMismatch           = "AMOUNT_MISMATCH"
	ErrCodeRemindCooldown           = "REMIND_COOLDOWN"
	ErrCodeDatabaseError            = "DATABASE_ERROR"
	ErrCodeCacheError               = "CACHE_ERROR"
)

// CodeOf extracts the business error code from err, or "" when err is
// not a BusinessError. Handlers use it to map errors to HTTP statuses;
// clients discriminate on it instead of matching message substrings.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Wrap common errors with business context
func WrapSettlementNotFound(settlementID int64) *BusinessError {
	return NewBusinessError(
		ErrCodeSettlementNotFound,
		fmt.Sprintf("Settlement %d not found", settlementID),
		ErrSettlementNotFound,
	)
}

func WrapSettlementAlreadyExists(taxiPartyID int64) *BusinessError {
	return NewBusinessError(
		ErrCodeSettlementAlreadyExists,
		fmt.Sprintf("Settlement for taxi party %d already exists", taxiPartyID),
		ErrSettlementAlreadyExists,
	)
}

func WrapSettlementAlreadySettled(settlementID int64) *BusinessError {
	return NewBusinessError(
		ErrCodeSettlementAlreadySettled,
		fmt.Sprintf("Settlement %d is already settled", settlementID),
		ErrSettlementAlreadySettled,
	)
}

func WrapPartyNotFound(taxiPartyID int64) *BusinessError {
	return NewBusinessError(
		ErrCodePartyNotFound,
		fmt.Sprintf("Taxi party %d not found", taxiPartyID),
		ErrPartyNotFound,
	)
}

func WrapParticipantNotFound(settlementID, userID int64) *BusinessError {
	return NewBusinessError(
		ErrCodeParticipantNotFound,
		fmt.Sprintf("User %d is not a participant of settlement %d", userID, settlementID),
		ErrParticipantNotFound,
	)
}

func WrapDuplicateParticipant(userID int64) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicateParticipant,
		fmt.Sprintf("User %d is listed more than once", userID),
		ErrDuplicateParticipant,
	)
}

func WrapAmountMismatch(totalFare, sum int64) *BusinessError {
	return NewBusinessError(
		ErrCodeAmountMismatch,
		fmt.Sprintf("Participant amounts sum to %d, expected total fare %d", sum, totalFare),
		ErrAmountMismatch,
	)
}

func WrapRemindCooldown(settlementID int64) *BusinessError {
	return NewBusinessError(
		ErrCodeRemindCooldown,
		fmt.Sprintf("Reminder for settlement %d was sent recently", settlementID),
		ErrRemindCooldown,
	)
}

// WrapSplitError attaches the matching business code to a fare split
// validation error so handlers and clients see a structured failure.
func WrapSplitError(code string, err error) *BusinessError {
	return NewBusinessError(code, err.Error(), err)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
