package reservation

import (
	"fmt"
	"strings"
)

// Target describes what to book. It is read-only for the duration of one attempt.
type Target struct {
	// Offering is the slug or display name of the experience to open.
	Offering string `yaml:"offering"`
	// BookingPage is the offering page used as the login continuation (optional).
	BookingPage string `yaml:"booking_page"`
	PartySize   int    `yaml:"party_size"`

	// TimePreferences are slot labels such as "7:00 PM". Earlier entries do not
	// outrank later ones; the first matching slot on the earliest day wins.
	// Empty means any slot is acceptable.
	TimePreferences []string `yaml:"time_preferences"`
	ExcludedDays    []string `yaml:"excluded_days"`
}

func (t Target) Validate() error {
	if strings.TrimSpace(t.Offering) == "" {
		return fmt.Errorf("%w: offering required", ErrConfiguration)
	}
	if t.PartySize < 1 {
		return fmt.Errorf("%w: party_size must be >= 1 (got %d)", ErrConfiguration, t.PartySize)
	}
	for _, p := range t.TimePreferences {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: time_preferences must not contain empty labels", ErrConfiguration)
		}
	}
	return nil
}

// Patron holds the account secrets. Never log it; String redacts.
type Patron struct {
	Email                   string `yaml:"email"`
	Password                string `yaml:"password"`
	PaymentVerificationCode string `yaml:"payment_verification_code"`
}

func (p Patron) Validate() error {
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("%w: patron email required", ErrConfiguration)
	}
	if p.Password == "" {
		return fmt.Errorf("%w: patron password required", ErrConfiguration)
	}
	return nil
}

func (p Patron) String() string {
	return fmt.Sprintf("Patron{Email:%s Password:[redacted] PaymentVerificationCode:[redacted]}", redactEmail(p.Email))
}

func (p Patron) GoString() string { return p.String() }

func redactEmail(e string) string {
	at := strings.IndexByte(e, '@')
	if at <= 1 {
		return "[redacted]"
	}
	return e[:1] + "***" + e[at:]
}

type Day struct {
	Label     string
	Available bool
}

// TimeSlot is a bookable time on a day. Day is a lookup label only.
type TimeSlot struct {
	Label string
	Day   string
	// Index is the slot's position in the day's listing, for agents that
	// address slots by position.
	Index int
}

// Result is produced only when a booking is confirmed.
type Result struct {
	Day              string `json:"day"`
	Time             string `json:"time"`
	ConfirmationText string `json:"confirmation"`
}
