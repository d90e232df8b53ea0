package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	d, err := parseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+30*time.Minute, d)

	_, err = parseClock("25:00")
	assert.Error(t, err)
	_, err = parseClock("10:75")
	assert.Error(t, err)
	_, err = parseClock("noon")
	assert.Error(t, err)
}

func TestUntilNextPicksNextSlotToday(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	offsets := []time.Duration{9 * time.Hour, 14 * time.Hour}
	assert.Equal(t, 3*time.Hour+30*time.Minute, untilNext(now, offsets))
}

func TestUntilNextRollsOverToTomorrow(t *testing.T) {
	now := time.Date(2026, 8, 30, 20, 0, 0, 0, time.UTC)
	offsets := []time.Duration{9 * time.Hour, 14 * time.Hour}
	assert.Equal(t, 13*time.Hour, untilNext(now, offsets))
}

func TestRunIntervalContinuesAfterCycleError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	s := New(func(context.Context) error {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return errors.New("cycle exploded")
		}
		if n >= 3 {
			cancel()
		}
		return nil
	})

	err := s.RunInterval(ctx, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestRunIntervalRejectsNonPositive(t *testing.T) {
	s := New(func(context.Context) error { return nil })
	assert.Error(t, s.RunInterval(context.Background(), 0))
}

func TestRunPerDayRejectsNonPositive(t *testing.T) {
	s := New(func(context.Context) error { return nil })
	assert.Error(t, s.RunPerDay(context.Background(), 0))
}

func TestRunAtTimesRejectsBadInput(t *testing.T) {
	s := New(func(context.Context) error { return nil })
	assert.Error(t, s.RunAtTimes(context.Background(), nil))
	assert.Error(t, s.RunAtTimes(context.Background(), []string{"not-a-time"}))
}
