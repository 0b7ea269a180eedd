package reservation

import (
	"context"
	"fmt"
)

// GuestControl is a stepper with no direct "set": it can only be nudged by one.
type GuestControl interface {
	ReadGuestCount(ctx context.Context) (int, error)
	IncrementGuestCount(ctx context.Context) error
	DecrementGuestCount(ctx context.Context) error
}

// DefaultStepBudget bounds the adjustment loop when no budget is configured.
func DefaultStepBudget(target int) int { return 2*target + 10 }

// AdjustGuestCount drives c to target one step at a time and returns the
// number of steps issued. A budget <= 0 means DefaultStepBudget(target).
// A control that clamps or ignores clicks ends in ErrGuestCount instead of
// looping forever.
func AdjustGuestCount(ctx context.Context, target int, c GuestControl, budget int) (int, error) {
	if target < 1 {
		return 0, fmt.Errorf("%w: party size must be >= 1 (got %d)", ErrConfiguration, target)
	}
	if budget <= 0 {
		budget = DefaultStepBudget(target)
	}

	current, err := c.ReadGuestCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("read guest count: %w", err)
	}

	steps := 0
	for current != target {
		if steps >= budget {
			return steps, fmt.Errorf("%w: failed to converge after %d steps (at %d, want %d)", ErrGuestCount, steps, current, target)
		}
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		if current < target {
			err = c.IncrementGuestCount(ctx)
		} else {
			err = c.DecrementGuestCount(ctx)
		}
		if err != nil {
			return steps, fmt.Errorf("step guest count: %w", err)
		}
		steps++

		if current, err = c.ReadGuestCount(ctx); err != nil {
			return steps, fmt.Errorf("read guest count: %w", err)
		}
	}
	return steps, nil
}
