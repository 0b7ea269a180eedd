package reservation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepper struct {
	value      int
	min, max   int
	increments int
	decrements int
	stuck      bool
}

func (s *stepper) ReadGuestCount(context.Context) (int, error) { return s.value, nil }

func (s *stepper) IncrementGuestCount(context.Context) error {
	s.increments++
	if !s.stuck && (s.max == 0 || s.value < s.max) {
		s.value++
	}
	return nil
}

func (s *stepper) DecrementGuestCount(context.Context) error {
	s.decrements++
	if !s.stuck && s.value > s.min {
		s.value--
	}
	return nil
}

func TestAdjustGuestCount_Increments(t *testing.T) {
	s := &stepper{value: 2, min: 1}

	steps, err := AdjustGuestCount(context.Background(), 4, s, 20)

	require.NoError(t, err)
	assert.Equal(t, 2, steps)
	assert.Equal(t, 2, s.increments)
	assert.Zero(t, s.decrements)
	assert.Equal(t, 4, s.value)
}

func TestAdjustGuestCount_Decrements(t *testing.T) {
	s := &stepper{value: 8, min: 1}

	steps, err := AdjustGuestCount(context.Background(), 3, s, 0)

	require.NoError(t, err)
	assert.Equal(t, 5, steps)
	assert.Equal(t, 5, s.decrements)
	assert.Equal(t, 3, s.value)
}

func TestAdjustGuestCount_AlreadyAtTarget(t *testing.T) {
	s := &stepper{value: 4}

	steps, err := AdjustGuestCount(context.Background(), 4, s, 1)

	require.NoError(t, err)
	assert.Zero(t, steps)
	assert.Zero(t, s.increments+s.decrements)
}

func TestAdjustGuestCount_StuckControlExhaustsBudget(t *testing.T) {
	s := &stepper{value: 2, stuck: true}

	steps, err := AdjustGuestCount(context.Background(), 6, s, 7)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGuestCount)
	assert.Contains(t, err.Error(), "failed to converge after 7 steps")
	assert.Equal(t, 7, steps)
	assert.Equal(t, 7, s.increments)
}

func TestAdjustGuestCount_ClampedControlUsesDefaultBudget(t *testing.T) {
	s := &stepper{value: 2, max: 6}

	_, err := AdjustGuestCount(context.Background(), 10, s, 0)

	require.Error(t, err)
	assert.Equal(t, KindGuestCount, KindOf(err))
	assert.Equal(t, DefaultStepBudget(10), s.increments)
}

func TestAdjustGuestCount_RejectsNonPositiveTarget(t *testing.T) {
	s := &stepper{value: 2}

	_, err := AdjustGuestCount(context.Background(), 0, s, 10)

	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, s.increments+s.decrements)
}
