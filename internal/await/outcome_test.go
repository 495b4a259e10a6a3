package await

import "testing"

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusFailed, "failed"},
		{StatusSucceeded, "succeeded"},
		{StatusTimedOut, "timed_out"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestFailureCauseString(t *testing.T) {
	tests := []struct {
		cause FailureCause
		want  string
	}{
		{CauseNone, ""},
		{CauseBaselineQueryFailed, "baseline_query_failed"},
		{CauseRepeatedQueryFailure, "repeated_query_failure"},
		{CauseCancelled, "cancelled"},
		{FailureCause(99), ""},
	}

	for _, tt := range tests {
		if got := tt.cause.String(); got != tt.want {
			t.Errorf("FailureCause(%d).String() = %q, want %q", tt.cause, got, tt.want)
		}
	}
}

func TestZeroOutcomeIsFailed(t *testing.T) {
	var out Outcome
	if out.Status != StatusFailed {
		t.Errorf("zero Outcome status = %v, want StatusFailed", out.Status)
	}
	if out.Cause != CauseNone {
		t.Errorf("zero Outcome cause = %v, want CauseNone", out.Cause)
	}
}
