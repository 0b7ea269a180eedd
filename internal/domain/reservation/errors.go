package reservation

import (
	"context"
	"errors"
)

// Kind names a failure class. The string values are what gets persisted and printed.
type Kind string

const (
	KindNone            Kind = ""
	KindConfiguration   Kind = "ConfigurationError"
	KindTransientUI     Kind = "TransientUIError"
	KindElementNotFound Kind = "ElementNotFoundError"
	KindNoAvailability  Kind = "NoAvailabilityError"
	KindGuestCount      Kind = "GuestCountError"
	KindAuthentication  Kind = "AuthenticationError"
	KindPayment         Kind = "PaymentError"
)

var (
	ErrConfiguration   = errors.New("configuration error")
	ErrTransientUI     = errors.New("transient ui error")
	ErrElementNotFound = errors.New("element not found")
	ErrNoAvailability  = errors.New("no availability")
	ErrGuestCount      = errors.New("guest count error")
	ErrAuthentication  = errors.New("authentication rejected")
	ErrPayment         = errors.New("payment error")
)

// KindOf classifies err. Step timeouts count as transient, and so does anything
// the agent returned without a recognised sentinel.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNoAvailability):
		return KindNoAvailability
	case errors.Is(err, ErrGuestCount):
		return KindGuestCount
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrPayment):
		return KindPayment
	case errors.Is(err, ErrElementNotFound):
		return KindElementNotFound
	case errors.Is(err, ErrTransientUI), errors.Is(err, context.DeadlineExceeded):
		return KindTransientUI
	default:
		return KindTransientUI
	}
}
