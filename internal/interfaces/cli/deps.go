package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/tock-booker/internal/application/booking"
	"github.com/example/tock-booker/internal/infrastructure/browser"
	"github.com/example/tock-booker/internal/infrastructure/config"
	"github.com/example/tock-booker/internal/infrastructure/crypto"
	"github.com/example/tock-booker/internal/infrastructure/fixture"
	"github.com/example/tock-booker/internal/infrastructure/logging"
	"github.com/example/tock-booker/internal/infrastructure/metrics"
	"github.com/example/tock-booker/internal/infrastructure/notify"
	"github.com/example/tock-booker/internal/infrastructure/postgres"
	"github.com/example/tock-booker/internal/infrastructure/sessionstore"
)

var errLedgerDisabled = errors.New("attempt ledger disabled: set DATABASE_URL")

// app is the wiring shared by the commands. Close releases whatever was opened.
type app struct {
	cfg     config.Config
	log     *logging.Logger
	secrets *crypto.AEAD // nil without MASTER_KEY
	metrics *metrics.Metrics

	pool *pgxpool.Pool
	runs *postgres.RunRepo // nil when the ledger is disabled

	launcher *browser.Launcher
}

func (g *globals) load(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(viper.New(), g.configFile)
	if err != nil {
		return nil, err
	}
	logging.Configure(cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel))

	a := &app{cfg: cfg, log: logging.New("tockbook"), metrics: metrics.New()}
	if len(cfg.MasterKey) > 0 {
		if a.secrets, err = crypto.New(cfg.MasterKey); err != nil {
			return nil, fmt.Errorf("MASTER_KEY: %w", err)
		}
	}
	return a, nil
}

// openLedger connects and migrates when DATABASE_URL is set. With required
// false a connection failure only disables the ledger, so a booking is never
// lost to a database outage.
func (a *app) openLedger(ctx context.Context, required bool) error {
	if a.cfg.DatabaseURL == "" {
		if required {
			return errLedgerDisabled
		}
		return nil
	}
	pool, err := postgres.Open(ctx, a.cfg.DatabaseURL)
	if err == nil {
		if err = postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
		}
	}
	if err != nil {
		if required {
			return err
		}
		a.log.Warnf("attempt ledger unavailable, continuing without it: %v", err)
		return nil
	}
	a.pool = pool
	a.runs = postgres.NewRunRepo(pool, a.log.With("ledger"))
	return nil
}

// sessions returns the fixture opener when fixturePath is set and the
// Playwright launcher otherwise.
func (a *app) sessions(fixturePath string) (booking.SessionOpener, error) {
	if fixturePath != "" {
		cal, err := fixture.Load(fixturePath)
		if err != nil {
			return nil, err
		}
		a.log.Infof("dry run against fixture %s", fixturePath)
		return &fixture.Opener{Calendar: cal}, nil
	}

	l := &browser.Launcher{
		BaseURL:  a.cfg.BaseURL,
		Headless: a.cfg.Headless,
		Timeout:  a.cfg.StepTimeout,
		Log:      a.log.With("browser"),
	}
	if len(a.cfg.MasterKey) > 0 && a.cfg.SessionFile != "" {
		store, err := sessionstore.NewFromMaster(a.cfg.SessionFile, a.cfg.MasterKey)
		if err != nil {
			return nil, err
		}
		l.Store = store
	}
	if err := l.Start(); err != nil {
		return nil, err
	}
	a.launcher = l
	return l, nil
}

func (a *app) orchestrator(sessions booking.SessionOpener) *booking.Orchestrator {
	o := &booking.Orchestrator{
		Sessions: sessions,
		Observer: a.metrics,
		Log:      a.log.With("booking"),
		Policy: booking.Policy{
			BaseURL:         a.cfg.BaseURL,
			StepTimeout:     a.cfg.StepTimeout,
			MaxAttempts:     a.cfg.MaxAttempts,
			InitialInterval: a.cfg.RetryInitialInterval,
			MaxInterval:     a.cfg.RetryMaxInterval,
			GuestStepBudget: a.cfg.GuestStepBudget,
		},
	}
	logSink := notify.NewLog(a.log.With("events"))
	if a.runs != nil {
		o.Recorder = a.runs
		o.Notifier = notify.Multi{logSink, a.runs}
	} else {
		o.Notifier = logSink
	}
	return o
}

func (a *app) Close() {
	if a.launcher != nil {
		if err := a.launcher.Shutdown(); err != nil {
			a.log.Warnf("%v", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
