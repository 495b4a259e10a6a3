package await

import (
	"errors"
	"time"
)

// Status is the terminal state of a wait.
type Status int

const (
	// StatusFailed means the wait ended without a verdict on the chain:
	// the baseline query failed, consecutive query failures exceeded the
	// retry bound, or the wait was cancelled.
	StatusFailed Status = iota

	// StatusSucceeded means the chain reached the target height.
	StatusSucceeded

	// StatusTimedOut means the deadline expired before the chain reached
	// the target height.
	StatusTimedOut
)

// String returns the status as a stable, report-friendly token.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusTimedOut:
		return "timed_out"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureCause classifies why a wait ended in StatusFailed.
type FailureCause int

const (
	// CauseNone is the cause for outcomes that did not fail.
	CauseNone FailureCause = iota

	// CauseBaselineQueryFailed means the initial height query failed, so
	// no target could be established. Never retried.
	CauseBaselineQueryFailed

	// CauseRepeatedQueryFailure means polling queries failed more times
	// in a row than the retry bound allows.
	CauseRepeatedQueryFailure

	// CauseCancelled means the surrounding context was cancelled before
	// the wait reached a verdict.
	CauseCancelled
)

// String returns the cause as a stable, report-friendly token.
func (c FailureCause) String() string {
	switch c {
	case CauseBaselineQueryFailed:
		return "baseline_query_failed"
	case CauseRepeatedQueryFailure:
		return "repeated_query_failure"
	case CauseCancelled:
		return "cancelled"
	default:
		return ""
	}
}

// Sentinel errors returned (wrapped) by Await for failed outcomes. Callers
// match them with errors.Is.
var (
	// ErrBaselineQuery is returned when the initial height query fails.
	ErrBaselineQuery = errors.New("baseline height query failed")

	// ErrRepeatedQueryFailure is returned when consecutive polling
	// queries fail more times than the retry bound allows.
	ErrRepeatedQueryFailure = errors.New("repeated height query failures")

	// ErrCancelled is returned when the wait is aborted by its context.
	ErrCancelled = errors.New("wait cancelled")
)

// Outcome describes how a wait ended.
//
// Height carries the final height for succeeded waits and the most
// recently observed height otherwise (the baseline when no polling query
// ever succeeded). Elapsed is measured from just after baseline capture,
// so the baseline query itself is excluded. Cycles counts polling queries
// issued after the baseline, including failed ones.
type Outcome struct {
	Status   Status
	Cause    FailureCause
	Baseline int64
	Target   int64
	Height   int64
	Elapsed  time.Duration
	Cycles   int64
}
