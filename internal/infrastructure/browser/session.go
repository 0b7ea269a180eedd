package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/example/tock-booker/internal/domain/reservation"
	"github.com/example/tock-booker/internal/infrastructure/logging"
	"github.com/example/tock-booker/internal/infrastructure/sessionstore"
)

// Session drives one Tock page. Playwright calls are not context aware, so
// each call gets a timeout equal to the time left on ctx.
type Session struct {
	baseURL string
	sel     Selectors
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	store   *sessionstore.Store
	log     *logging.Logger
}

var _ reservation.Session = (*Session)(nil)

// timeout converts the remaining ctx budget to Playwright milliseconds.
func timeout(ctx context.Context) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dl, ok := ctx.Deadline()
	if !ok {
		return nil, nil
	}
	ms := float64(time.Until(dl).Milliseconds())
	if ms < 1 {
		return nil, context.DeadlineExceeded
	}
	return &ms, nil
}

// classify tags Playwright failures with the booking error kinds.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%w: %s: %v", reservation.ErrTransientUI, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// mustExist fails with ErrElementNotFound when selector matches nothing.
func (s *Session) mustExist(loc playwright.Locator, what string) error {
	n, err := loc.Count()
	if err != nil {
		return classify("count "+what, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", reservation.ErrElementNotFound, what)
	}
	return nil
}

func (s *Session) waitVisible(ctx context.Context, loc playwright.Locator, what string) error {
	to, err := timeout(ctx)
	if err != nil {
		return err
	}
	err = loc.WaitFor(playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateVisible, Timeout: to})
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %s never appeared", reservation.ErrTransientUI, what)
	}
	return classify("wait for "+what, err)
}

func (s *Session) click(ctx context.Context, loc playwright.Locator, what string) error {
	if err := s.mustExist(loc, what); err != nil {
		return err
	}
	to, err := timeout(ctx)
	if err != nil {
		return err
	}
	return classify("click "+what, loc.Click(playwright.LocatorClickOptions{Timeout: to}))
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	to, err := timeout(ctx)
	if err != nil {
		return err
	}
	_, err = s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   to,
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return classify("navigate", err)
}

// Authenticate signs in unless the restored session already skipped the form.
func (s *Session) Authenticate(ctx context.Context, email, password string) error {
	emailInput := s.page.Locator(s.sel.EmailInput)
	n, err := emailInput.Count()
	if err != nil {
		return classify("find login form", err)
	}
	if n == 0 {
		s.log.Infof("already signed in")
		return nil
	}
	to, err := timeout(ctx)
	if err != nil {
		return err
	}
	if err := emailInput.Fill(email, playwright.LocatorFillOptions{Timeout: to}); err != nil {
		return classify("fill email", err)
	}
	if err := s.page.Locator(s.sel.PasswordInput).Fill(password, playwright.LocatorFillOptions{Timeout: to}); err != nil {
		return classify("fill password", err)
	}
	if err := s.click(ctx, s.page.Locator(s.sel.SignIn), "sign-in button"); err != nil {
		return err
	}

	if to, err = timeout(ctx); err != nil {
		return err
	}
	err = emailInput.WaitFor(playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateHidden, Timeout: to})
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: still on the login form after sign-in", reservation.ErrAuthentication)
	}
	return classify("wait for sign-in", err)
}

func (s *Session) DismissInterstitialIfPresent(ctx context.Context) (bool, error) {
	consent := s.page.Locator(s.sel.Consent)
	n, err := consent.Count()
	if err != nil {
		return false, classify("find consent banner", err)
	}
	if n == 0 {
		return false, nil
	}
	if err := s.click(ctx, consent.First(), "consent banner"); err != nil {
		return false, err
	}
	return true, nil
}

// OpenOffering accepts a page path or URL (navigated to unless already open)
// or the display name of an offering link on the current page.
func (s *Session) OpenOffering(ctx context.Context, identifier string) error {
	switch {
	case strings.HasPrefix(identifier, "http"), strings.HasPrefix(identifier, "/"):
		if !strings.Contains(s.page.URL(), strings.TrimPrefix(identifier, s.baseURL)) {
			target := identifier
			if strings.HasPrefix(identifier, "/") {
				target = s.baseURL + identifier
			}
			if err := s.Navigate(ctx, target); err != nil {
				return err
			}
		}
	default:
		link := s.page.Locator(s.sel.Offering).Filter(playwright.LocatorFilterOptions{HasText: exactText(identifier)}).First()
		if err := s.click(ctx, link, "offering "+identifier); err != nil {
			return err
		}
	}
	return s.waitVisible(ctx, s.page.Locator(s.sel.CalendarDay).First(), "calendar")
}

func (s *Session) ReadGuestCount(ctx context.Context) (int, error) {
	text := s.page.Locator(s.sel.GuestText).First()
	if err := s.mustExist(text, "guest count"); err != nil {
		return 0, err
	}
	to, err := timeout(ctx)
	if err != nil {
		return 0, err
	}
	label, err := text.InnerText(playwright.LocatorInnerTextOptions{Timeout: to})
	if err != nil {
		return 0, classify("read guest count", err)
	}
	n, ok := parseCount(label)
	if !ok {
		return 0, fmt.Errorf("%w: guest count label %q", reservation.ErrTransientUI, label)
	}
	return n, nil
}

func (s *Session) IncrementGuestCount(ctx context.Context) error {
	return s.click(ctx, s.page.Locator(s.sel.GuestPlus).First(), "add guest")
}

func (s *Session) DecrementGuestCount(ctx context.Context) error {
	return s.click(ctx, s.page.Locator(s.sel.GuestMinus).First(), "remove guest")
}

func (s *Session) ListAvailableDays(ctx context.Context) ([]reservation.Day, error) {
	if err := s.waitVisible(ctx, s.page.Locator(s.sel.CalendarDay).First(), "calendar"); err != nil {
		return nil, err
	}
	cells, err := s.page.Locator(s.sel.CalendarDay).All()
	if err != nil {
		return nil, classify("list calendar days", err)
	}
	days := make([]reservation.Day, 0, len(cells))
	for _, c := range cells {
		label, err := c.GetAttribute("aria-label")
		if err != nil {
			return nil, classify("read day label", err)
		}
		disabled, err := c.GetAttribute("aria-disabled")
		if err != nil {
			return nil, classify("read day state", err)
		}
		class, err := c.GetAttribute("class")
		if err != nil {
			return nil, classify("read day class", err)
		}
		if label == "" {
			continue
		}
		days = append(days, reservation.Day{Label: label, Available: dayAvailable(disabled, class)})
	}
	return days, nil
}

func (s *Session) OpenDay(ctx context.Context, label string) error {
	return s.click(ctx, s.page.Locator(attrSelector(s.sel.CalendarDay, "aria-label", label)).First(), "day "+label)
}

func (s *Session) ListSlots(ctx context.Context, day reservation.Day) ([]reservation.TimeSlot, error) {
	to, err := timeout(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: playwright.LoadStateNetworkidle, Timeout: to}); err != nil {
		return nil, classify("wait for slots", err)
	}
	results, err := s.page.Locator(s.sel.TimeSlot).All()
	if err != nil {
		return nil, classify("list slots", err)
	}
	slots := make([]reservation.TimeSlot, 0, len(results))
	for i, r := range results {
		text, err := r.InnerText()
		if err != nil {
			return nil, classify("read slot", err)
		}
		slots = append(slots, reservation.TimeSlot{Label: strings.TrimSpace(text), Day: day.Label, Index: i})
	}
	return slots, nil
}

// SelectSlot clicks the listed slot at slot.Index. If the list re-rendered
// and that position now holds another time, it falls back to the first slot
// whose whole text is the label.
func (s *Session) SelectSlot(ctx context.Context, slot reservation.TimeSlot) error {
	slots := s.page.Locator(s.sel.TimeSlot)
	loc := slots.Filter(playwright.LocatorFilterOptions{HasText: exactText(slot.Label)}).First()

	to, err := timeout(ctx)
	if err != nil {
		return err
	}
	if n, err := slots.Count(); err == nil && slot.Index < n {
		byIndex := slots.Nth(slot.Index)
		text, err := byIndex.InnerText(playwright.LocatorInnerTextOptions{Timeout: to})
		if err == nil && sameLabel(text, slot.Label) {
			loc = byIndex
		}
	}
	return s.click(ctx, loc, "slot "+slot.Label)
}

// FillPaymentVerification types the code into the hosted CVV field when the
// offering asks for card verification.
func (s *Session) FillPaymentVerification(ctx context.Context, code string) (bool, error) {
	to, err := timeout(ctx)
	if err != nil {
		return false, err
	}
	if err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: playwright.LoadStateNetworkidle, Timeout: to}); err != nil {
		return false, classify("wait for checkout", err)
	}
	n, err := s.page.Locator(s.sel.PaymentForm).Count()
	if err != nil {
		return false, classify("find payment form", err)
	}
	if n == 0 {
		return false, nil
	}
	if code == "" {
		return true, fmt.Errorf("%w: payment verification code required by this offering", reservation.ErrPayment)
	}
	cvv := s.page.FrameLocator(s.sel.CVVFrame).Locator(s.sel.CVVInput)
	if err := s.waitVisible(ctx, cvv, "cvv field"); err != nil {
		return true, err
	}
	if to, err = timeout(ctx); err != nil {
		return true, err
	}
	if err := cvv.Fill(code, playwright.LocatorFillOptions{Timeout: to}); err != nil {
		return true, classify("fill cvv", err)
	}
	return true, nil
}

func (s *Session) Submit(ctx context.Context) error {
	return s.click(ctx, s.page.Locator(s.sel.Submit).First(), "submit button")
}

func (s *Session) ReadConfirmationText(ctx context.Context) (string, error) {
	receipt := s.page.Locator(s.sel.Receipt)
	if err := s.waitVisible(ctx, receipt.First(), "receipt"); err != nil {
		return "", err
	}
	texts, err := receipt.AllInnerTexts()
	if err != nil {
		return "", classify("read receipt", err)
	}
	return strings.Join(texts, " "), nil
}

// Close saves the login state for the next run and closes the browser.
func (s *Session) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.saveState(); err != nil {
			s.log.Warnf("could not save session: %v", err)
		}
	}
	if err := s.context.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Session) saveState() error {
	state, err := s.context.StorageState()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.store.Save(raw)
}
