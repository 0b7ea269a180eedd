package reservation

import "context"

// Agent is how the booking flow observes and drives the booking site. Site
// specific selectors live entirely behind it. Every call may fail with
// ErrTransientUI or ErrElementNotFound; implementations may also report
// ErrAuthentication and ErrPayment when they can tell.
type Agent interface {
	GuestControl
	DayBrowser

	Navigate(ctx context.Context, url string) error
	Authenticate(ctx context.Context, email, password string) error
	// DismissInterstitialIfPresent reports whether a consent banner was closed.
	DismissInterstitialIfPresent(ctx context.Context) (bool, error)
	OpenOffering(ctx context.Context, identifier string) error
	ListAvailableDays(ctx context.Context) ([]Day, error)
	SelectSlot(ctx context.Context, slot TimeSlot) error
	// FillPaymentVerification reports whether the payment sub-form was present.
	// On error, present tells whether the form had already been found.
	FillPaymentVerification(ctx context.Context, code string) (bool, error)
	Submit(ctx context.Context) error
	ReadConfirmationText(ctx context.Context) (string, error)
}

// Session is an Agent bound to one external session (page context, login
// cookies). Close releases it and must be safe to call after any failure.
type Session interface {
	Agent
	Close() error
}
