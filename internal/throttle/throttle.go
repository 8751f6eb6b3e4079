// Package throttle partitions work into batches and paces them with
// randomized delays so the send cadence is not fingerprintable.
package throttle

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/foxzi/outreach/internal/recipient"
)

// Batches splits recipients into contiguous groups of at most size,
// preserving input order. Concatenating the result reproduces the
// input exactly.
func Batches(list []recipient.Recipient, size int) [][]recipient.Recipient {
	if size < 1 {
		size = 1
	}
	var out [][]recipient.Recipient
	for start := 0; start < len(list); start += size {
		end := start + size
		if end > len(list) {
			end = len(list)
		}
		out = append(out, list[start:end])
	}
	return out
}

// Throttler sleeps a random interval between batches. The duration is
// drawn uniformly from [min, max] on every pause; a fixed cadence is
// deliberately avoided.
type Throttler struct {
	min    time.Duration
	max    time.Duration
	jitter time.Duration
	rng    *rand.Rand
	logger *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a throttler seeded from the clock so every run paces
// differently.
func New(min, max, jitter time.Duration, logger *slog.Logger) *Throttler {
	if max < min {
		max = min
	}
	return &Throttler{
		min:    min,
		max:    max,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Pause blocks for a random duration in [min, max], or until the
// context is cancelled. The drawn duration is returned so callers can
// record it.
func (t *Throttler) Pause(ctx context.Context) (time.Duration, error) {
	d := t.interval(t.min, t.max)
	t.logger.Info("pausing between batches", "delay", d)
	return d, t.sleep(ctx, d)
}

// JitterMessage blocks for a random duration in [0, jitter] between
// individual messages. A zero jitter disables it.
func (t *Throttler) JitterMessage(ctx context.Context) error {
	if t.jitter <= 0 {
		return nil
	}
	d := t.interval(0, t.jitter)
	t.logger.Debug("pausing between messages", "delay", d)
	return t.sleep(ctx, d)
}

// interval draws uniformly from [lo, hi].
func (t *Throttler) interval(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(t.rng.Int63n(int64(hi-lo)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
