package await

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wemix/blockwait/internal/metrics"
	"github.com/wemix/blockwait/internal/source"
	"github.com/wemix/blockwait/pkg/logger"
)

const (
	// DefaultPollInterval is the pause between height queries when the
	// request does not specify one.
	DefaultPollInterval = 1 * time.Second

	// DefaultMaxQueryRetries bounds how many consecutive query failures
	// are tolerated while polling before the wait fails.
	DefaultMaxQueryRetries = 3

	// progressLogInterval is how often polling progress is logged.
	progressLogInterval = 10 * time.Second
)

// Request configures a single wait operation.
type Request struct {
	// Offset is the number of blocks the chain must advance beyond the
	// baseline. Zero means the baseline alone satisfies the wait and no
	// polling happens.
	Offset int64

	// PollInterval is the pause between successive height queries.
	// DefaultPollInterval is used when zero.
	PollInterval time.Duration

	// Timeout bounds the whole wait, measured from just after baseline
	// capture. Zero means wait indefinitely.
	Timeout time.Duration
}

func (r Request) withDefaults() Request {
	if r.PollInterval <= 0 {
		r.PollInterval = DefaultPollInterval
	}
	return r
}

func (r Request) validate() error {
	if r.Offset < 0 {
		return fmt.Errorf("offset cannot be negative, got %d", r.Offset)
	}
	if r.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %v", r.Timeout)
	}
	return nil
}

// Options tunes behavior shared by every wait an Awaiter runs.
type Options struct {
	// MaxQueryRetries bounds consecutive query failures tolerated while
	// polling. DefaultMaxQueryRetries is used when less than 1.
	MaxQueryRetries int

	// Quiet suppresses the periodic progress log lines.
	Quiet bool

	// Recorder receives metrics updates when non-nil.
	Recorder *metrics.Recorder
}

// Awaiter blocks callers until a chain has advanced a requested number of
// blocks past the height observed when the wait began.
//
// Each call to Await owns all of its state, so one Awaiter may serve
// concurrent waits from separate goroutines without locking.
type Awaiter struct {
	src             source.HeightSource
	logger          *logger.Logger
	maxQueryRetries int
	quiet           bool
	recorder        *metrics.Recorder
	progressEvery   time.Duration
}

// NewAwaiter creates an Awaiter polling the given height source.
func NewAwaiter(src source.HeightSource, log *logger.Logger, opts Options) *Awaiter {
	retries := opts.MaxQueryRetries
	if retries < 1 {
		retries = DefaultMaxQueryRetries
	}

	return &Awaiter{
		src:             src,
		logger:          log,
		maxQueryRetries: retries,
		quiet:           opts.Quiet,
		recorder:        opts.Recorder,
		progressEvery:   progressLogInterval,
	}
}

// Await blocks until the chain height reaches baseline plus the requested
// offset, the timeout expires, or ctx is cancelled.
//
// The baseline is captured with one query before polling starts; if that
// query fails the wait fails immediately. Transient polling failures are
// absorbed up to the retry bound and never surfaced individually.
//
// The returned error is non-nil exactly when the outcome status is
// StatusFailed, and wraps one of the package sentinel errors. A timed out
// wait is reported through the outcome alone.
func (a *Awaiter) Await(ctx context.Context, req Request) (Outcome, error) {
	if err := req.validate(); err != nil {
		return Outcome{}, err
	}
	req = req.withDefaults()

	baseline, err := a.src.CurrentHeight(ctx)
	if err != nil {
		if ctx.Err() != nil {
			out := Outcome{Status: StatusFailed, Cause: CauseCancelled}
			return a.finish(out, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
		}
		out := Outcome{Status: StatusFailed, Cause: CauseBaselineQueryFailed}
		return a.finish(out, fmt.Errorf("%w: %w", ErrBaselineQuery, err))
	}

	// Elapsed time is measured from here so the baseline query itself
	// never counts against the timeout.
	startedAt := time.Now()
	target := baseline + req.Offset

	a.logger.Info("captured baseline height",
		zap.String("source", a.src.Name()),
		zap.Int64("baseline", baseline),
		zap.Int64("target", target),
		zap.Duration("poll_interval", req.PollInterval))

	if a.recorder != nil {
		a.recorder.SetBaselineHeight(baseline)
		a.recorder.SetTargetHeight(target)
		a.recorder.SetCurrentHeight(baseline)
	}

	out := Outcome{
		Baseline: baseline,
		Target:   target,
		Height:   baseline,
	}

	// The baseline already satisfies a zero offset.
	if req.Offset == 0 {
		out.Status = StatusSucceeded
		out.Elapsed = time.Since(startedAt)
		return a.finish(out, nil)
	}

	var deadlineC <-chan time.Time
	if req.Timeout > 0 {
		deadline := time.NewTimer(req.Timeout)
		defer deadline.Stop()
		deadlineC = deadline.C
	}

	ticker := time.NewTicker(req.PollInterval)
	defer ticker.Stop()

	consecutiveErrs := 0
	lastProgress := startedAt

	for {
		// An already-expired deadline must be noticed here, not one
		// poll interval later.
		if req.Timeout > 0 && time.Since(startedAt) >= req.Timeout {
			out.Status = StatusTimedOut
			out.Elapsed = time.Since(startedAt)
			return a.finish(out, nil)
		}

		select {
		case <-ctx.Done():
			out.Status = StatusFailed
			out.Cause = CauseCancelled
			out.Elapsed = time.Since(startedAt)
			return a.finish(out, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))

		case <-deadlineC:
			out.Status = StatusTimedOut
			out.Elapsed = time.Since(startedAt)
			return a.finish(out, nil)

		case <-ticker.C:
			out.Cycles++

			height, err := a.src.CurrentHeight(ctx)
			if err != nil {
				if ctx.Err() != nil {
					out.Status = StatusFailed
					out.Cause = CauseCancelled
					out.Elapsed = time.Since(startedAt)
					return a.finish(out, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
				}

				consecutiveErrs++
				if a.recorder != nil {
					a.recorder.RecordQuery(false)
					a.recorder.SetConsecutiveFailures(consecutiveErrs)
				}
				a.logger.Warn("height query failed",
					zap.Error(err),
					zap.Int("consecutive_failures", consecutiveErrs),
					zap.Int("max_retries", a.maxQueryRetries))

				if consecutiveErrs > a.maxQueryRetries {
					out.Status = StatusFailed
					out.Cause = CauseRepeatedQueryFailure
					out.Elapsed = time.Since(startedAt)
					return a.finish(out, fmt.Errorf("%w: %w", ErrRepeatedQueryFailure, err))
				}
				continue
			}

			consecutiveErrs = 0
			out.Height = height
			if a.recorder != nil {
				a.recorder.RecordQuery(true)
				a.recorder.SetCurrentHeight(height)
				a.recorder.SetConsecutiveFailures(0)
			}

			if height >= target {
				out.Status = StatusSucceeded
				out.Elapsed = time.Since(startedAt)
				return a.finish(out, nil)
			}

			if !a.quiet && time.Since(lastProgress) >= a.progressEvery {
				a.logger.Info("waiting for height",
					zap.Int64("current", height),
					zap.Int64("target", target),
					zap.Int64("remaining", target-height))
				lastProgress = time.Now()
			}
		}
	}
}

// finish records the terminal outcome and logs it at a severity matching
// the status.
func (a *Awaiter) finish(out Outcome, err error) (Outcome, error) {
	if a.recorder != nil {
		a.recorder.RecordWaitOutcome(out.Status.String())
	}

	fields := []zap.Field{
		zap.String("source", a.src.Name()),
		zap.Int64("baseline", out.Baseline),
		zap.Int64("target", out.Target),
		zap.Int64("height", out.Height),
		zap.Duration("elapsed", out.Elapsed),
		zap.Int64("cycles", out.Cycles),
	}

	switch out.Status {
	case StatusSucceeded:
		a.logger.Info("reached target height", fields...)
	case StatusTimedOut:
		a.logger.Warn("timed out waiting for target height", fields...)
	default:
		a.logger.Error("wait failed",
			append(fields, zap.String("cause", out.Cause.String()), zap.Error(err))...)
	}

	return out, err
}
