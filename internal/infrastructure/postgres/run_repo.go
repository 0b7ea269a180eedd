package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/tock-booker/internal/application/booking"
	"github.com/example/tock-booker/internal/domain/reservation"
	"github.com/example/tock-booker/internal/infrastructure/logging"
	"github.com/example/tock-booker/internal/internaltypes"
)

// RunRepo is the attempt ledger. It records runs for the orchestrator and
// keeps notifier events alongside them.
type RunRepo struct {
	pool *pgxpool.Pool
	log  *logging.Logger
}

func NewRunRepo(pool *pgxpool.Pool, log *logging.Logger) *RunRepo {
	if log == nil {
		log = logging.Nop()
	}
	return &RunRepo{pool: pool, log: log}
}

var (
	_ booking.Recorder = (*RunRepo)(nil)
	_ booking.Notifier = (*RunRepo)(nil)
)

func (r *RunRepo) StartRun(ctx context.Context, run reservation.Run) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO runs (id, offering, party_size, status, started_at) VALUES ($1,$2,$3,$4,$5)`,
		run.ID, run.Offering, run.PartySize, string(run.Status), run.StartedAt,
	)
	return err
}

func (r *RunRepo) RecordStep(ctx context.Context, s reservation.Step) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO run_steps (run_id, state, attempt, kind, detail, at) VALUES ($1,$2,$3,$4,$5,$6)`,
		s.RunID, s.State, s.Attempt, string(s.Kind), s.Detail, s.At,
	)
	return err
}

func (r *RunRepo) FinishRun(ctx context.Context, run reservation.Run) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET status=$2, failure_kind=$3, failure_state=$4, last_error=$5,
			booked_day=$6, booked_time=$7, confirmation=$8, finished_at=$9
		WHERE id=$1
	`, run.ID, string(run.Status), string(run.FailureKind), run.FailureState, run.LastError,
		run.Day, run.Time, run.Confirmation, run.FinishedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return internaltypes.ErrNotFound
	}
	return nil
}

// Notify stores the event with its run. Events for runs that never reached
// the ledger (configuration failures) are dropped.
func (r *RunRepo) Notify(ctx context.Context, e booking.Event) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO run_events (run_id, level, state, message, at)
		SELECT $1,$2,$3,$4,$5 WHERE EXISTS (SELECT 1 FROM runs WHERE id=$1)
	`, e.RunID, string(e.Level), string(e.State), e.Message, e.At)
	if err != nil {
		r.log.Warnf("store event for run %s: %v", e.RunID, err)
	}
}

const runColumns = `id, offering, party_size, status, failure_kind, failure_state, last_error,
	booked_day, booked_time, confirmation, started_at, finished_at`

func scanRun(row pgx.Row) (reservation.Run, error) {
	var (
		run         reservation.Run
		status      string
		failureKind string
	)
	err := row.Scan(&run.ID, &run.Offering, &run.PartySize, &status, &failureKind, &run.FailureState, &run.LastError,
		&run.Day, &run.Time, &run.Confirmation, &run.StartedAt, &run.FinishedAt)
	run.Status = reservation.RunStatus(status)
	run.FailureKind = reservation.Kind(failureKind)
	return run, err
}

// List returns the most recent runs first.
func (r *RunRepo) List(ctx context.Context, limit int) ([]reservation.Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reservation.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *RunRepo) Get(ctx context.Context, id string) (reservation.Run, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return reservation.Run{}, internaltypes.ErrNotFound
	}
	return run, err
}

func (r *RunRepo) Steps(ctx context.Context, runID string) ([]reservation.Step, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT run_id, state, attempt, kind, detail, at FROM run_steps WHERE run_id=$1 ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reservation.Step
	for rows.Next() {
		var (
			s    reservation.Step
			kind string
		)
		if err := rows.Scan(&s.RunID, &s.State, &s.Attempt, &kind, &s.Detail, &s.At); err != nil {
			return nil, err
		}
		s.Kind = reservation.Kind(kind)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *RunRepo) Events(ctx context.Context, runID string) ([]reservation.RunEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT run_id, level, state, message, at FROM run_events WHERE run_id=$1 ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reservation.RunEvent
	for rows.Next() {
		var e reservation.RunEvent
		if err := rows.Scan(&e.RunID, &e.Level, &e.State, &e.Message, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
