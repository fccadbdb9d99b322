package ledger

import (
	"errors"
	"fmt"

	"github.com/openvault/recur/internal/event"
)

// Code categorizes a rejected submission.
type Code string

const (
	// CodeInvalidPeriod rejects a subscription period of one day or less.
	CodeInvalidPeriod Code = "INVALID_PERIOD"

	// CodeZeroAddress rejects a null vault or token address.
	CodeZeroAddress Code = "ZERO_ADDRESS"

	// CodeNotOwner rejects a mutation from anyone but the subscription owner.
	CodeNotOwner Code = "NOT_OWNER"

	// CodeNotAuthorized rejects a mutation from anyone but the owner or the
	// operator.
	CodeNotAuthorized Code = "NOT_AUTHORIZED"

	// CodeSubscriptionNotFound reports an absent or deleted subscription.
	CodeSubscriptionNotFound Code = "SUBSCRIPTION_NOT_FOUND"

	// CodeInstanceNotFound reports an absent instance.
	CodeInstanceNotFound Code = "INSTANCE_NOT_FOUND"

	// CodeDuplicateInstance rejects a second enrollment for the same
	// (subscriber, subscription) pair.
	CodeDuplicateInstance Code = "DUPLICATE_INSTANCE"

	// CodeInsufficientBalance reports a payer balance below the required
	// amount.
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"

	// CodeInsufficientAllowance reports a payer allowance below the required
	// amount.
	CodeInsufficientAllowance Code = "INSUFFICIENT_ALLOWANCE"

	// CodeTooEarly rejects a settlement before the instance's nextPaymentAt.
	CodeTooEarly Code = "TOO_EARLY"
)

// Error is a typed rejection from the state machine. No state change
// accompanies it.
type Error struct {
	Code    Code
	Message string

	// Subscription and Instance identify the affected entities when known.
	Subscription event.ID
	Instance     event.ID
}

func (e *Error) Error() string {
	switch {
	case !e.Instance.IsZero():
		return fmt.Sprintf("%s: %s (instance=%s)", e.Code, e.Message, e.Instance)
	case !e.Subscription.IsZero():
		return fmt.Sprintf("%s: %s (subscription=%s)", e.Code, e.Message, e.Subscription)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// CodeOf extracts the rejection code from err, or "" if err is not a ledger
// rejection.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsNotFound reports whether err is a subscription- or instance-not-found
// rejection.
func IsNotFound(err error) bool {
	c := CodeOf(err)
	return c == CodeSubscriptionNotFound || c == CodeInstanceNotFound
}

// IsAuthorization reports whether err is an ownership or capability
// rejection.
func IsAuthorization(err error) bool {
	c := CodeOf(err)
	return c == CodeNotOwner || c == CodeNotAuthorized
}

// IsInsufficientFunds reports whether err is a balance or allowance
// rejection. The scheduler records these without retrying inside a tick.
func IsInsufficientFunds(err error) bool {
	c := CodeOf(err)
	return c == CodeInsufficientBalance || c == CodeInsufficientAllowance
}

// IsTooEarly reports whether err rejects a settlement attempted before the
// instance is due.
func IsTooEarly(err error) bool {
	return CodeOf(err) == CodeTooEarly
}
