package booking

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/example/tock-booker/internal/domain/reservation"
)

const DefaultBaseURL = "https://www.exploretock.com"

// Policy holds the timeout and retry settings applied to every transition.
type Policy struct {
	BaseURL string

	StepTimeout     time.Duration
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// PaymentAttempts caps tries for PaymentError (retried once by default).
	PaymentAttempts int
	// GuestStepBudget <= 0 derives the budget from the party size.
	GuestStepBudget int
}

func DefaultPolicy() Policy {
	return Policy{
		BaseURL:         DefaultBaseURL,
		StepTimeout:     30 * time.Second,
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		PaymentAttempts: 2,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.BaseURL == "" {
		p.BaseURL = d.BaseURL
	}
	if p.StepTimeout <= 0 {
		p.StepTimeout = d.StepTimeout
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.PaymentAttempts < 1 {
		p.PaymentAttempts = d.PaymentAttempts
	}
	return p
}

// retryable decides whether another try is allowed after attempt failed with
// kind. Only transient UI errors get MaxAttempts tries; payment errors get
// PaymentAttempts whatever MaxAttempts is; every other kind is terminal.
func (p Policy) retryable(kind reservation.Kind, attempt int) bool {
	switch kind {
	case reservation.KindTransientUI:
		return attempt < p.MaxAttempts
	case reservation.KindPayment:
		return attempt < p.PaymentAttempts
	default:
		return false
	}
}

func (p Policy) maxTries() int { return max(p.MaxAttempts, p.PaymentAttempts) }

// attempt runs fn under the policy: each try gets its own StepTimeout, only
// retryable kinds are tried again, with exponential backoff in between.
// report is called after every failed try.
func (p Policy) attempt(ctx context.Context, state State, fn func(context.Context) error, report func(*StepError)) (int, error) {
	tries := 0
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		if ctxErr := ctx.Err(); ctxErr != nil {
			return struct{}{}, backoff.Permanent(&StepError{State: state, Kind: reservation.KindOf(ctxErr), Attempt: tries, Err: ctxErr})
		}
		stepCtx, cancel := context.WithTimeout(ctx, p.StepTimeout)
		defer cancel()

		err := fn(stepCtx)
		if err == nil {
			return struct{}{}, nil
		}
		se := &StepError{State: state, Kind: reservation.KindOf(err), Attempt: tries, Err: err}
		if ctxErr := ctx.Err(); ctxErr != nil {
			se.Err = ctxErr
			report(se)
			return struct{}{}, backoff.Permanent(se)
		}
		report(se)
		if !p.retryable(se.Kind, tries) {
			return struct{}{}, backoff.Permanent(se)
		}
		return struct{}{}, se
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(p.maxTries())))

	if err == nil {
		return tries, nil
	}
	var se *StepError
	if errors.As(err, &se) {
		return tries, se
	}
	// cancelled while waiting between tries
	return tries, &StepError{State: state, Kind: reservation.KindOf(err), Attempt: tries, Err: err}
}

// LoginURL builds the sign-in URL that continues to the offering page with the
// party size preselected.
func LoginURL(baseURL string, t reservation.Target) string {
	base := strings.TrimRight(baseURL, "/")
	cont := t.BookingPage
	if cont == "" && (strings.HasPrefix(t.Offering, "/") || strings.HasPrefix(t.Offering, "http")) {
		cont = t.Offering
	}
	if cont == "" {
		cont = "/"
	}
	if u, err := url.Parse(cont); err == nil {
		q := u.Query()
		q.Set("size", strconv.Itoa(t.PartySize))
		u.RawQuery = q.Encode()
		cont = u.String()
	}
	return base + "/login?continue=" + url.QueryEscape(cont)
}
