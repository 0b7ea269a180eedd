package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/example/tock-booker/internal/domain/reservation"
	"github.com/example/tock-booker/internal/infrastructure/logging"
	"github.com/example/tock-booker/internal/infrastructure/sessionstore"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 900
)

// Launcher owns the Playwright driver and opens one browser per session.
type Launcher struct {
	BaseURL   string
	Headless  bool
	Timeout   time.Duration
	Selectors Selectors
	// Store is optional; without it every run signs in from scratch.
	Store *sessionstore.Store
	Log   *logging.Logger

	mu sync.Mutex
	pw *playwright.Playwright
}

// Start installs the driver and browsers if needed and starts Playwright.
func (l *Launcher) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pw != nil {
		return nil
	}

	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	l.pw = pw
	return nil
}

func (l *Launcher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// OpenSession launches a browser with the saved login state restored.
func (l *Launcher) OpenSession(ctx context.Context) (reservation.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.Start(); err != nil {
		return nil, err
	}
	log := l.logger()

	defTimeout := l.Timeout
	if defTimeout <= 0 {
		defTimeout = DefaultTimeout
	}
	sel := l.Selectors
	if sel.CalendarDay == "" {
		sel = DefaultSelectors()
	}

	browser, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: DefaultViewportWidth, Height: DefaultViewportHeight},
	}
	statePath, err := l.restoreState()
	if err != nil {
		log.Warnf("ignoring saved session: %v", err)
	}
	if statePath != "" {
		defer os.Remove(statePath)
		contextOpts.StorageStatePath = playwright.String(statePath)
	}

	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(defTimeout.Milliseconds()))

	return &Session{
		baseURL: strings.TrimRight(l.BaseURL, "/"),
		sel:     sel,
		browser: browser,
		context: bctx,
		page:    page,
		store:   l.Store,
		log:     log,
	}, nil
}

// restoreState writes the saved storage state to a temp file for the new
// browser context. It returns "" when there is nothing to restore.
func (l *Launcher) restoreState() (string, error) {
	if l.Store == nil {
		return "", nil
	}
	state, savedAt, err := l.Store.Load()
	if errors.Is(err, sessionstore.ErrNoSession) {
		return "", nil
	}
	if err != nil {
		_ = l.Store.Clear()
		return "", err
	}
	f, err := os.CreateTemp("", "tockbook-state-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(state); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	l.logger().Debugf("restored session saved at %s", savedAt.Format(time.RFC3339))
	return f.Name(), nil
}

func (l *Launcher) logger() *logging.Logger {
	if l.Log != nil {
		return l.Log
	}
	return logging.Nop()
}
