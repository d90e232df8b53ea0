package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// CycleFunc runs one pipeline cycle. A cycle error is logged by the
// scheduler and the loop continues to the next scheduled time.
type CycleFunc func(ctx context.Context) error

// Scheduler runs pipeline cycles on a long-running cadence until the
// context is cancelled. Cancellation is only observed between cycles and
// during waits, never inside a running cycle.
type Scheduler struct {
	run CycleFunc
}

func New(run CycleFunc) *Scheduler {
	return &Scheduler{run: run}
}

// RunInterval runs a cycle immediately and then once per fixed interval.
func (s *Scheduler) RunInterval(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("scheduler: interval must be positive, got %s", every)
	}
	log.Info().Msgf("[scheduler] running every %s", every)
	for {
		s.cycle(ctx)
		if err := s.wait(ctx, every); err != nil {
			return err
		}
	}
}

// RunPerDay averages perDay cycles per day with randomized spacing, so
// uploads do not land at mechanical clock intervals. Each gap is the base
// interval scaled by a random factor in [0.5, 1.5).
func (s *Scheduler) RunPerDay(ctx context.Context, perDay int) error {
	if perDay <= 0 {
		return fmt.Errorf("scheduler: per-day count must be positive, got %d", perDay)
	}
	base := 24 * time.Hour / time.Duration(perDay)
	log.Info().Msgf("[scheduler] running %d times per day (base interval %s)", perDay, base)
	for {
		s.cycle(ctx)
		gap := time.Duration((0.5 + rand.Float64()) * float64(base))
		log.Info().Msgf("[scheduler] next run in %s", gap.Round(time.Minute))
		if err := s.wait(ctx, gap); err != nil {
			return err
		}
	}
}

// RunAtTimes runs a cycle at each of the given "HH:MM" local clock times
// every day.
func (s *Scheduler) RunAtTimes(ctx context.Context, times []string) error {
	parsed := make([]time.Duration, 0, len(times))
	for _, t := range times {
		d, err := parseClock(t)
		if err != nil {
			return err
		}
		parsed = append(parsed, d)
	}
	if len(parsed) == 0 {
		return fmt.Errorf("scheduler: no clock times given")
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i] < parsed[j] })

	log.Info().Msgf("[scheduler] running daily at %v", times)
	for {
		gap := untilNext(time.Now(), parsed)
		log.Info().Msgf("[scheduler] next run in %s", gap.Round(time.Second))
		if err := s.wait(ctx, gap); err != nil {
			return err
		}
		s.cycle(ctx)
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	if err := s.run(ctx); err != nil {
		log.Error().Err(err).Msg("[scheduler] cycle failed, continuing")
	}
}

func (s *Scheduler) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseClock turns "HH:MM" into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("scheduler: bad clock time %q, want HH:MM", s)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("scheduler: clock time %q out of range", s)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}

// untilNext returns the wait until the next scheduled offset, rolling over
// to tomorrow's first slot when today's are all past.
func untilNext(now time.Time, offsets []time.Duration) time.Duration {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sinceMidnight := now.Sub(midnight)
	for _, off := range offsets {
		if off > sinceMidnight {
			return off - sinceMidnight
		}
	}
	return 24*time.Hour - sinceMidnight + offsets[0]
}
