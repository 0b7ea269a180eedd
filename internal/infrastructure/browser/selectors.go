package browser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Selectors locate the Tock page elements. Defaults match the live site; they
// are exposed so a layout change can be patched without a release.
type Selectors struct {
	EmailInput    string
	PasswordInput string
	SignIn        string
	Consent       string

	Offering string

	GuestText  string
	GuestPlus  string
	GuestMinus string

	CalendarDay string
	TimeSlot    string

	PaymentForm string
	CVVFrame    string
	CVVInput    string
	Submit      string
	Receipt     string
}

func tid(id string) string { return "[data-testid=" + id + "]" }

func DefaultSelectors() Selectors {
	return Selectors{
		EmailInput:    tid("email-input"),
		PasswordInput: tid("password-input"),
		SignIn:        tid("signin"),
		Consent:       "#truste-consent-required",

		Offering: tid("offering-link"),

		GuestText:  tid("guest-selector-text"),
		GuestPlus:  tid("guest-selector-plus"),
		GuestMinus: tid("guest-selector-minus"),

		CalendarDay: tid("consumer-calendar-day"),
		TimeSlot:    tid("search-result-time"),

		PaymentForm: "span#cvv",
		CVVFrame:    "iframe[type=cvv]",
		CVVInput:    "#cvv",
		Submit:      tid("submit-purchase-button"),
		Receipt:     ".Receipt-container--header p",
	}
}

// parseCount pulls the first integer out of a label like "4 guests".
func parseCount(s string) (int, bool) {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	return n, err == nil
}

// dayAvailable mirrors the calendar markup: a bookable day is not
// aria-disabled and carries the is-available class.
func dayAvailable(ariaDisabled, class string) bool {
	if strings.TrimSpace(ariaDisabled) != "false" {
		return false
	}
	for _, c := range strings.Fields(class) {
		if c == "is-available" {
			return true
		}
	}
	return false
}

// attrSelector narrows base to elements whose attr equals value.
func attrSelector(base, attr, value string) string {
	v := strings.ReplaceAll(value, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return base + "[" + attr + `="` + v + `"]`
}

// exactText matches elements whose whole text is label. Playwright's plain
// string HasText is a substring match, so "2:00 PM" would also hit "12:00 PM".
func exactText(label string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*` + regexp.QuoteMeta(strings.TrimSpace(label)) + `\s*$`)
}

// sameLabel compares rendered labels ignoring whitespace differences.
func sameLabel(a, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}
