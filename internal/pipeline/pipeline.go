// Package pipeline runs a full send: load recipients, filter against
// the sent log, compose and deliver in throttled batches, and record
// every successful delivery durably before moving on.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/foxzi/outreach/internal/compose"
	"github.com/foxzi/outreach/internal/deliver"
	"github.com/foxzi/outreach/internal/metrics"
	"github.com/foxzi/outreach/internal/recipient"
	"github.com/foxzi/outreach/internal/sentlog"
	"github.com/foxzi/outreach/internal/throttle"
)

// Sender delivers one composed message. Satisfied by *deliver.Client.
type Sender interface {
	Send(ctx context.Context, from, to string, raw []byte) error
}

// Pauser controls the delays between batches and messages. Satisfied
// by *throttle.Throttler.
type Pauser interface {
	Pause(ctx context.Context) (time.Duration, error)
	JitterMessage(ctx context.Context) error
}

// Options wires the pipeline's collaborators.
type Options struct {
	Loader    *recipient.Loader
	Store     sentlog.Store
	Composer  *compose.Composer
	Sender    Sender
	Throttler Pauser
	Metrics   *metrics.Metrics // may be nil
	Logger    *slog.Logger

	FromAddress string
	BatchSize   int
	MaxPerRun   int // 0 = unlimited
	DryRun      bool
}

// Report summarizes a completed run.
type Report struct {
	RunID            string
	Loaded           int
	SkippedMalformed int
	SkippedDuplicate int
	Selected         int
	Sent             int
	Failed           int
	Batches          int
	Duration         time.Duration
}

// Pipeline executes send runs.
type Pipeline struct {
	opts   Options
	logger *slog.Logger

	now func() time.Time
}

// New creates a pipeline from fully constructed collaborators.
func New(opts Options) *Pipeline {
	return &Pipeline{
		opts:   opts,
		logger: opts.Logger,
		now:    time.Now,
	}
}

// Run executes one complete send against the recipients file at path.
// Per-recipient failures are counted in the report, not returned; Run
// returns an error only for run-fatal conditions such as an unreadable
// source file, a rejected login, or context cancellation.
func (p *Pipeline) Run(ctx context.Context, path string) (*Report, error) {
	start := p.now()
	report := &Report{RunID: uuid.New().String()}

	p.logger.Info("starting run", "run_id", report.RunID, "dry_run", p.opts.DryRun)

	recipients, malformed, err := p.opts.Loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading recipients: %w", err)
	}
	report.Loaded = len(recipients)
	report.SkippedMalformed = malformed
	p.opts.Metrics.SetRecipientsLoaded(len(recipients))

	selected := p.filter(recipients, report)
	report.Selected = len(selected)
	p.logger.Info("recipients selected",
		"loaded", report.Loaded,
		"skipped_duplicate", report.SkippedDuplicate,
		"selected", report.Selected)

	batches := throttle.Batches(selected, p.opts.BatchSize)
	report.Batches = len(batches)

	for i, batch := range batches {
		p.logger.Info("sending batch", "batch", i+1, "of", len(batches), "size", len(batch))
		p.opts.Metrics.IncBatch()

		for _, rec := range batch {
			if err := ctx.Err(); err != nil {
				report.Duration = p.now().Sub(start)
				return report, err
			}
			if err := p.sendOne(ctx, rec, report); err != nil {
				report.Duration = p.now().Sub(start)
				return report, err
			}
		}

		// No pause after the final batch.
		if i < len(batches)-1 {
			delay, err := p.opts.Throttler.Pause(ctx)
			if err != nil {
				report.Duration = p.now().Sub(start)
				return report, err
			}
			p.opts.Metrics.ObserveBatchDelay(delay.Seconds())
		}
	}

	report.Duration = p.now().Sub(start)
	p.logger.Info("run complete",
		"run_id", report.RunID,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped_duplicate", report.SkippedDuplicate,
		"duration", report.Duration)
	return report, nil
}

// filter drops recipients already in the sent log and duplicates
// within the source itself, then applies the per-run cap. Order is
// preserved.
func (p *Pipeline) filter(recipients []recipient.Recipient, report *Report) []recipient.Recipient {
	seen := make(map[string]struct{}, len(recipients))
	selected := make([]recipient.Recipient, 0, len(recipients))

	for _, rec := range recipients {
		key := rec.Key()
		if _, dup := seen[key]; dup {
			report.SkippedDuplicate++
			p.opts.Metrics.IncSkippedDuplicate()
			continue
		}
		seen[key] = struct{}{}

		if p.opts.Store.Contains(key) {
			report.SkippedDuplicate++
			p.opts.Metrics.IncSkippedDuplicate()
			p.logger.Debug("already sent, skipping", "recipient", deliver.HashAddr(key))
			continue
		}

		selected = append(selected, rec)
		if p.opts.MaxPerRun > 0 && len(selected) >= p.opts.MaxPerRun {
			p.logger.Info("per-run limit reached", "limit", p.opts.MaxPerRun)
			break
		}
	}
	return selected
}

// sendOne composes, delivers, and records a single recipient. The
// sent log is appended only after the server has accepted the
// message. A returned error aborts the whole run; per-recipient
// delivery failures are logged and counted instead.
func (p *Pipeline) sendOne(ctx context.Context, rec recipient.Recipient, report *Report) error {
	hashed := deliver.HashAddr(rec.Email)

	msg, err := p.opts.Composer.Compose(rec)
	if err != nil {
		// Composition was validated at startup; a failure here is a
		// programming error, not a recipient problem.
		return fmt.Errorf("composing message for %s: %w", hashed, err)
	}

	if p.opts.DryRun {
		p.logger.Info("dry run, not sending", "recipient", hashed, "subject", msg.Subject)
		report.Sent++
		return nil
	}

	if err := p.opts.Throttler.JitterMessage(ctx); err != nil {
		return err
	}

	if err := p.opts.Sender.Send(ctx, p.opts.FromAddress, rec.Email, msg.Raw); err != nil {
		if deliver.IsAuthError(err) {
			return fmt.Errorf("authentication rejected, aborting run: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.Failed++
		p.opts.Metrics.IncFailed()
		p.logger.Error("delivery failed, skipping recipient", "recipient", hashed, "error", err)
		return nil
	}

	if err := p.opts.Store.Append(sentlog.Record{
		Email:  rec.Key(),
		SentAt: p.now().UTC(),
		RunID:  report.RunID,
	}); err != nil {
		// The message went out but the log write failed. Without a
		// durable record the next run would send a duplicate, so this
		// is fatal.
		return fmt.Errorf("recording sent message for %s: %w", hashed, err)
	}

	report.Sent++
	p.opts.Metrics.IncSent()
	p.logger.Info("message sent", "recipient", hashed)
	return nil
}
