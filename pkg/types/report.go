package types

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Wait statuses as written to report files.
const (
	StatusSucceeded = "succeeded"
	StatusTimedOut  = "timed_out"
	StatusFailed    = "failed"
)

// WaitReport records the terminal result of a single block-height wait
// against one node.
type WaitReport struct {
	Node           string    `json:"node"`
	Status         string    `json:"status"`
	Cause          string    `json:"cause,omitempty"`
	BaselineHeight int64     `json:"baseline_height"`
	TargetHeight   int64     `json:"target_height"`
	FinalHeight    int64     `json:"final_height"`
	ElapsedMS      int64     `json:"elapsed_ms"`
	Cycles         int       `json:"cycles"`
	Error          string    `json:"error,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Succeeded reports whether the wait reached its target height.
func (r *WaitReport) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Validate checks the report for structural consistency.
func (r *WaitReport) Validate() error {
	switch r.Status {
	case StatusSucceeded, StatusTimedOut, StatusFailed:
	case "":
		return fmt.Errorf("report status is empty")
	default:
		return fmt.Errorf("unknown report status: %s", r.Status)
	}

	if r.BaselineHeight < 0 {
		return fmt.Errorf("baseline height cannot be negative")
	}

	if r.TargetHeight < r.BaselineHeight {
		return fmt.Errorf("target height %d below baseline %d", r.TargetHeight, r.BaselineHeight)
	}

	if r.ElapsedMS < 0 {
		return fmt.Errorf("elapsed time cannot be negative")
	}

	return nil
}

// ParseReportFile parses a wait report file
func ParseReportFile(filename string) ([]WaitReport, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var reports []WaitReport
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("failed to parse report file: %w", err)
	}

	for i := range reports {
		if err := reports[i].Validate(); err != nil {
			return nil, fmt.Errorf("report %d: %w", i, err)
		}
	}

	return reports, nil
}

// WriteReportFile writes wait reports to file
func WriteReportFile(filename string, reports []WaitReport) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal reports: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	return nil
}
