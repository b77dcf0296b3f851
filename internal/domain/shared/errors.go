package shared

import (
	"errors"
	"fmt"
	"slices"
)

// Error kinds. Every DomainError carries one; the HTTP layer maps kinds to
// status codes through the Is* predicates below.
var (
	ErrNotFound = errors.New("entity not found")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNegativeValue   = errors.New("value must be positive")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	ErrInvalidState = errors.New("invalid state")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrConflict is a lost compare-and-set: another writer changed the row.
	ErrConflict = errors.New("conflict")

	ErrTransientIO        = errors.New("transient I/O failure")
	ErrServiceUnavailable = errors.New("service unavailable")
)

var validationKinds = []error{
	ErrValidation, ErrInvalidID, ErrInvalidInput, ErrNegativeValue,
	ErrValueOutOfRange, ErrFutureTimestamp, ErrInvalidFormat,
}

// DomainError is an error raised by a domain or application operation.
// Domain and Op locate it ("contribution", "Approve"); Kind classifies it;
// Err, when set, is the cause.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the cause, or the kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches the kind as well as anything in the cause chain.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError is NewDomainError with a cause.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	e := NewDomainError(domain, op, kind, message)
	e.Err = err
	return e
}

// Validation creates a validation error for the given domain operation.
func Validation(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrValidation, message)
}

// Transient wraps an infrastructure failure that the caller may retry.
func Transient(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrTransientIO, "temporary failure", err)
}

// Partner domain errors
var (
	ErrPartnerNotFound      = NewDomainError("partner", "Find", ErrNotFound, "partner not found")
	ErrPartnerAlreadyExists = NewDomainError("partner", "Create", ErrConflict, "partner already exists")
)

// Contribution domain errors
var (
	ErrContributionNotFound         = NewDomainError("contribution", "Find", ErrNotFound, "contribution not found")
	ErrContributionNotPending       = NewDomainError("contribution", "Review", ErrInvalidState, "contribution is not pending")
	ErrContributionAlreadyProcessed = NewDomainError("contribution", "Review", ErrConflict, "contribution already processed")
	ErrInvalidAmount                = NewDomainError("contribution", "Validate", ErrNegativeValue, "amount must be greater than zero")
	ErrAmountMismatch               = NewDomainError("contribution", "Approve", ErrInvalidInput, "amount does not match the submitted contribution")
	ErrContributionDateInFuture     = NewDomainError("contribution", "Validate", ErrFutureTimestamp, "contribution date cannot be in the future")
	ErrInvalidPaymentMethod         = NewDomainError("contribution", "Validate", ErrInvalidInput, "invalid payment method")
	ErrProofTooLarge                = NewDomainError("contribution", "UploadProof", ErrValueOutOfRange, "proof file exceeds the size limit")
	ErrProofContentType             = NewDomainError("contribution", "UploadProof", ErrInvalidFormat, "proof file type is not supported")
	ErrProofNotAttached             = NewDomainError("contribution", "ProofURL", ErrNotFound, "contribution has no proof attached")
	ErrProofStorageDisabled         = NewDomainError("contribution", "UploadProof", ErrServiceUnavailable, "proof storage is not configured")
)

// Identity domain errors
var (
	ErrUserNotFound       = NewDomainError("identity", "Find", ErrNotFound, "user not found")
	ErrEmailTaken         = NewDomainError("identity", "SignUp", ErrConflict, "email is already registered")
	ErrInvalidCredentials = NewDomainError("identity", "SignIn", ErrUnauthorized, "invalid email or password")
	ErrAdminRequired      = NewDomainError("identity", "Authorize", ErrForbidden, "administrator role required")
	ErrNotOwner           = NewDomainError("identity", "Authorize", ErrForbidden, "resource belongs to another user")
	ErrInvalidRole        = NewDomainError("identity", "Validate", ErrInvalidInput, "invalid role")
)

// Leaderboard domain errors
var (
	ErrInvalidPeriod           = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "period must be weekly, monthly or all_time")
	ErrPartnerNotInLeaderboard = NewDomainError("leaderboard", "PositionOf", ErrNotFound, "partner has no position in this period")
)

// Notification domain errors
var (
	ErrNotificationNotFound = NewDomainError("notification", "Find", ErrNotFound, "notification not found")
	ErrInvalidNotification  = NewDomainError("notification", "Validate", ErrInvalidInput, "invalid notification")
)

// Rank domain errors
var (
	ErrInvalidRankTable = NewDomainError("rank", "Validate", ErrInvalidInput, "invalid rank table")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation covers every input-shaped kind; the API answers 400.
func IsValidation(err error) bool {
	return slices.ContainsFunc(validationKinds, func(k error) bool { return errors.Is(err, k) })
}

// IsInvalidState means the operation does not apply to the entity as it is
// now, e.g. reviewing a contribution that is no longer pending.
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }

func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsAuthorization is true for both 401 and 403 kinds.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsTransient is true for infrastructure failures that may clear on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientIO) || errors.Is(err, ErrServiceUnavailable)
}

// IsRetryable gates the read-retry policy. Writes never retry.
func IsRetryable(err error) bool { return IsTransient(err) }
