package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/tock-booker/internal/application/scheduler"
	"github.com/example/tock-booker/internal/domain/reservation"
	"github.com/example/tock-booker/internal/infrastructure/config"
)

const defaultWatchLength = 15 * time.Minute

func newWatchCmd(g *globals) *cobra.Command {
	var (
		targetPath  string
		fixturePath string
		interval    time.Duration
		length      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Retry the booking on an interval until it succeeds or the release window closes",
		Long: `Retries the whole booking attempt inside an attempt window. The window comes
from the target file's watch block (release_date, release_time, timezone, lead,
length); without one it opens now and stays open for --for.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tf, err := a.loadTarget(targetPath)
			if err != nil {
				return err
			}
			window, err := watchWindow(tf.Watch, time.Now(), length)
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = a.cfg.WatchInterval
			}
			if err := a.openLedger(ctx, false); err != nil {
				return err
			}
			sessions, err := a.sessions(fixturePath)
			if err != nil {
				return err
			}

			w := &scheduler.Watcher{
				Booker:   a.orchestrator(sessions),
				Interval: interval,
				Window:   window,
				Log:      a.log.With("watch"),
			}
			a.log.Infof("watching %s from %s until %s every %s",
				tf.Offering, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339), interval)

			res, err := w.Watch(ctx, tf.Target, tf.Patron)
			if err != nil {
				if res.Last.Failure != nil {
					return fmt.Errorf("%w (after %d attempts; last: %v)", err, res.Attempts, res.Last.Failure)
				}
				return err
			}
			return writeJSON(cmd, res.Last.Result)
		},
	}
	cmd.Flags().StringVar(&targetPath, "target", "", "target file (yaml)")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "dry run against a calendar fixture instead of the live site")
	cmd.Flags().DurationVar(&interval, "interval", 0, "delay between attempt starts (default WATCH_INTERVAL)")
	cmd.Flags().DurationVar(&length, "for", defaultWatchLength, "window length when the target has no watch block")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

// watchWindow resolves the attempt window from the target's watch block, or
// [now, now+length) when there is none.
func watchWindow(spec *config.WatchSpec, now time.Time, length time.Duration) (scheduler.Window, error) {
	if spec == nil {
		w := scheduler.Window{Start: now, End: now.Add(length)}
		return w, w.Validate()
	}

	lead, err := optionalDuration("watch.lead", spec.Lead, 0)
	if err != nil {
		return scheduler.Window{}, err
	}
	size, err := optionalDuration("watch.length", spec.Length, length)
	if err != nil {
		return scheduler.Window{}, err
	}
	clock := spec.ReleaseTime
	if clock == "" {
		clock = "00:00"
	}
	zone := spec.Timezone
	if zone == "" {
		zone = "Local"
	}
	return scheduler.ReleaseWindow(spec.ReleaseDate, clock, zone, lead, size)
}

func optionalDuration(name, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s %q is not a valid duration", reservation.ErrConfiguration, name, s)
	}
	return d, nil
}
