// Package fixture is an in-memory booking site driven by a YAML calendar. It
// backs `tockbook book --fixture` dry runs and end-to-end tests.
package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/example/tock-booker/internal/domain/reservation"
)

type Calendar struct {
	GuestCount int `yaml:"guest_count"`
	GuestMin   int `yaml:"guest_min"`
	GuestMax   int `yaml:"guest_max"`

	// Offerings, when set, are the only identifiers OpenOffering accepts.
	Offerings         []string `yaml:"offerings"`
	ConsentBanner     bool     `yaml:"consent_banner"`
	RejectCredentials bool     `yaml:"reject_credentials"`

	PaymentForm bool `yaml:"payment_form"`
	// PaymentCode, when set, must match the submitted verification code.
	PaymentCode  string `yaml:"payment_code"`
	Confirmation string `yaml:"confirmation"`

	// Flaky makes the first N calls of the named method fail as transient.
	Flaky map[string]int `yaml:"flaky"`

	Days []CalendarDay `yaml:"days"`
}

type CalendarDay struct {
	Label     string   `yaml:"label"`
	Available bool     `yaml:"available"`
	Slots     []string `yaml:"slots"`
}

func Load(path string) (*Calendar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Calendar, error) {
	var c Calendar
	d := yaml.NewDecoder(bytes.NewReader(raw))
	d.KnownFields(true)
	if err := d.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if c.GuestMin < 1 {
		c.GuestMin = 1
	}
	if c.GuestMax == 0 {
		c.GuestMax = 20
	}
	if c.GuestCount == 0 {
		c.GuestCount = 2
	}
	if c.GuestMax < c.GuestMin {
		return nil, fmt.Errorf("parse fixture: guest_max %d below guest_min %d", c.GuestMax, c.GuestMin)
	}
	return &c, nil
}

// Opener hands out a fresh Agent over the same calendar for every session.
type Opener struct {
	Calendar *Calendar

	mu       sync.Mutex
	sessions []*Agent
}

func (o *Opener) OpenSession(ctx context.Context) (reservation.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.Calendar == nil {
		return nil, errors.New("fixture: no calendar loaded")
	}
	a := NewAgent(o.Calendar)
	o.mu.Lock()
	o.sessions = append(o.sessions, a)
	o.mu.Unlock()
	return a, nil
}

// Sessions returns every agent handed out so far.
func (o *Opener) Sessions() []*Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.sessions)
}

// Agent simulates one browser session against a Calendar.
type Agent struct {
	cal *Calendar

	mu        sync.Mutex
	calls     []string
	failures  map[string]int
	guests    int
	signedIn  bool
	consent   bool
	offering  string
	openDay   string
	selected  *reservation.TimeSlot
	submitted bool
	closed    bool
}

var _ reservation.Session = (*Agent)(nil)

func NewAgent(c *Calendar) *Agent {
	a := &Agent{cal: c, guests: c.GuestCount, consent: c.ConsentBanner, failures: map[string]int{}}
	for k, v := range c.Flaky {
		a.failures[k] = v
	}
	return a
}

// Calls lists the methods invoked, in order.
func (a *Agent) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.calls)
}

func (a *Agent) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// enter records the call and returns the scripted flaky failure, if any.
// Callers hold a.mu.
func (a *Agent) enter(ctx context.Context, name string) error {
	a.calls = append(a.calls, name)
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.closed {
		return fmt.Errorf("%w: session closed", reservation.ErrTransientUI)
	}
	if a.failures[name] > 0 {
		a.failures[name]--
		return fmt.Errorf("%w: %s flaked", reservation.ErrTransientUI, name)
	}
	return nil
}

func (a *Agent) Navigate(ctx context.Context, url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enter(ctx, "Navigate")
}

func (a *Agent) Authenticate(ctx context.Context, email, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "Authenticate"); err != nil {
		return err
	}
	if a.cal.RejectCredentials {
		return fmt.Errorf("%w: invalid email or password", reservation.ErrAuthentication)
	}
	a.signedIn = true
	return nil
}

func (a *Agent) DismissInterstitialIfPresent(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "DismissInterstitialIfPresent"); err != nil {
		return false, err
	}
	if !a.consent {
		return false, nil
	}
	a.consent = false
	return true, nil
}

func (a *Agent) OpenOffering(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "OpenOffering"); err != nil {
		return err
	}
	if !a.signedIn {
		return fmt.Errorf("%w: not signed in", reservation.ErrTransientUI)
	}
	if a.consent {
		return fmt.Errorf("%w: consent banner covers the page", reservation.ErrTransientUI)
	}
	if len(a.cal.Offerings) > 0 && !slices.Contains(a.cal.Offerings, id) {
		return fmt.Errorf("%w: offering %q", reservation.ErrElementNotFound, id)
	}
	a.offering = id
	return nil
}

func (a *Agent) ReadGuestCount(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "ReadGuestCount"); err != nil {
		return 0, err
	}
	return a.guests, nil
}

// IncrementGuestCount clamps silently at guest_max like the real stepper.
func (a *Agent) IncrementGuestCount(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "IncrementGuestCount"); err != nil {
		return err
	}
	if a.guests < a.cal.GuestMax {
		a.guests++
	}
	return nil
}

func (a *Agent) DecrementGuestCount(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "DecrementGuestCount"); err != nil {
		return err
	}
	if a.guests > a.cal.GuestMin {
		a.guests--
	}
	return nil
}

func (a *Agent) ListAvailableDays(ctx context.Context) ([]reservation.Day, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "ListAvailableDays"); err != nil {
		return nil, err
	}
	if a.offering == "" {
		return nil, fmt.Errorf("%w: calendar", reservation.ErrElementNotFound)
	}
	days := make([]reservation.Day, 0, len(a.cal.Days))
	for _, d := range a.cal.Days {
		days = append(days, reservation.Day{Label: d.Label, Available: d.Available})
	}
	return days, nil
}

func (a *Agent) day(label string) (CalendarDay, bool) {
	for _, d := range a.cal.Days {
		if d.Label == label {
			return d, true
		}
	}
	return CalendarDay{}, false
}

func (a *Agent) OpenDay(ctx context.Context, label string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "OpenDay"); err != nil {
		return err
	}
	if _, ok := a.day(label); !ok {
		return fmt.Errorf("%w: day %q", reservation.ErrElementNotFound, label)
	}
	a.openDay = label
	return nil
}

func (a *Agent) ListSlots(ctx context.Context, day reservation.Day) ([]reservation.TimeSlot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "ListSlots"); err != nil {
		return nil, err
	}
	if a.openDay != day.Label {
		return nil, fmt.Errorf("%w: %q is not the open day", reservation.ErrTransientUI, day.Label)
	}
	d, _ := a.day(day.Label)
	slots := make([]reservation.TimeSlot, 0, len(d.Slots))
	for i, s := range d.Slots {
		slots = append(slots, reservation.TimeSlot{Label: s, Day: d.Label, Index: i})
	}
	return slots, nil
}

func (a *Agent) SelectSlot(ctx context.Context, slot reservation.TimeSlot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "SelectSlot"); err != nil {
		return err
	}
	d, ok := a.day(a.openDay)
	if !ok || d.Label != slot.Day || !slices.Contains(d.Slots, slot.Label) {
		return fmt.Errorf("%w: slot %s on %s", reservation.ErrElementNotFound, slot.Label, slot.Day)
	}
	a.selected = &slot
	return nil
}

func (a *Agent) FillPaymentVerification(ctx context.Context, code string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "FillPaymentVerification"); err != nil {
		return false, err
	}
	if a.selected == nil {
		return false, fmt.Errorf("%w: checkout not open", reservation.ErrElementNotFound)
	}
	if !a.cal.PaymentForm {
		return false, nil
	}
	if code == "" || (a.cal.PaymentCode != "" && code != a.cal.PaymentCode) {
		return true, fmt.Errorf("%w: card verification rejected", reservation.ErrPayment)
	}
	return true, nil
}

func (a *Agent) Submit(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "Submit"); err != nil {
		return err
	}
	if a.selected == nil {
		return fmt.Errorf("%w: submit button", reservation.ErrElementNotFound)
	}
	a.submitted = true
	return nil
}

func (a *Agent) ReadConfirmationText(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enter(ctx, "ReadConfirmationText"); err != nil {
		return "", err
	}
	if !a.submitted {
		return "", fmt.Errorf("%w: receipt", reservation.ErrElementNotFound)
	}
	if a.cal.Confirmation != "" {
		return a.cal.Confirmation, nil
	}
	return fmt.Sprintf("Your reservation for %d on %s at %s is confirmed", a.guests, a.selected.Day, a.selected.Label), nil
}

func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}
