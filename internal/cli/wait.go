package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wemix/blockwait/internal/await"
	"github.com/wemix/blockwait/internal/config"
	"github.com/wemix/blockwait/internal/source"
	"github.com/wemix/blockwait/pkg/types"
)

// Sentinel errors used by main to derive the process exit code.
var (
	// ErrWaitTimedOut is returned when at least one node timed out and none failed.
	ErrWaitTimedOut = errors.New("wait timed out")

	// ErrWaitFailed is returned when at least one node's wait failed.
	ErrWaitFailed = errors.New("wait failed")
)

// NewWaitCommand creates the wait command
func NewWaitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until the chain height advances by an offset",
		Long: `Wait queries each node once for its current height, then polls until
the height has advanced by the requested offset. The baseline is always
captured at startup, so an offset of zero completes immediately.

Example:
  blockwait wait --offset 10 --rpc-addr localhost:8588 --timeout 5m`,
		Args: cobra.NoArgs,
		RunE: runWait,
	}

	cmd.Flags().Int64P("offset", "n", config.DefaultOffset, "Number of blocks the chain must advance")
	cmd.Flags().Duration("poll-interval", config.DefaultPollInterval, "Interval between height queries")
	cmd.Flags().Duration("timeout", 0, "Give up after this duration (0 waits forever)")
	cmd.Flags().Int("max-query-retries", config.DefaultMaxQueryRetries, "Consecutive query failures tolerated while polling")
	cmd.Flags().String("report-file", "", "Write the wait outcome to this JSON file")

	return cmd
}

func runWait(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// JSON output owns stdout, so routine logs stay off unless debugging.
	if cfg.JSONOutput && !cfg.Debug {
		cfg.DisableLogs = true
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources := make([]source.HeightSource, 0, len(cfg.RPCAddresses))
	for _, addr := range cfg.RPCAddresses {
		src, err := source.FromConfig(cfg, addr)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	log.Info("starting wait",
		zap.Int64("offset", cfg.Offset),
		zap.Duration("poll_interval", cfg.PollInterval.Duration),
		zap.Duration("timeout", cfg.Timeout.Duration),
		zap.Int("nodes", len(sources)))

	opts := await.Options{
		MaxQueryRetries: cfg.MaxQueryRetries,
		Quiet:           cfg.Quiet,
	}
	req := await.Request{
		Offset:       cfg.Offset,
		PollInterval: cfg.PollInterval.Duration,
		Timeout:      cfg.Timeout.Duration,
	}

	results := await.AwaitAll(ctx, sources, log, opts, req)
	reports := buildReports(results)

	if cfg.ReportFile != "" {
		if err := types.WriteReportFile(cfg.ReportFile, reports); err != nil {
			return err
		}
		log.Info("wrote wait report", zap.String("path", cfg.ReportFile))
	}

	if cfg.JSONOutput {
		if err := renderJSON(cmd, reports); err != nil {
			return err
		}
	} else {
		renderText(cmd, reports)
	}

	return waitVerdict(reports)
}

// buildReports converts wait outcomes into their report form
func buildReports(results []await.NodeOutcome) []types.WaitReport {
	now := time.Now().UTC()
	reports := make([]types.WaitReport, 0, len(results))
	for _, r := range results {
		report := types.WaitReport{
			Node:           r.Source,
			Status:         r.Outcome.Status.String(),
			Cause:          r.Outcome.Cause.String(),
			BaselineHeight: r.Outcome.Baseline,
			TargetHeight:   r.Outcome.Target,
			FinalHeight:    r.Outcome.Height,
			ElapsedMS:      r.Outcome.Elapsed.Milliseconds(),
			Cycles:         int(r.Outcome.Cycles),
			CompletedAt:    now,
		}
		if r.Err != nil {
			report.Error = r.Err.Error()
		}
		reports = append(reports, report)
	}
	return reports
}

func renderText(cmd *cobra.Command, reports []types.WaitReport) {
	for _, r := range reports {
		elapsed := time.Duration(r.ElapsedMS) * time.Millisecond
		switch r.Status {
		case types.StatusSucceeded:
			fmt.Fprintf(cmd.OutOrStdout(), "%s: reached height %d (baseline %d, target %d) in %s\n",
				r.Node, r.FinalHeight, r.BaselineHeight, r.TargetHeight, elapsed)
		case types.StatusTimedOut:
			fmt.Fprintf(cmd.OutOrStdout(), "%s: timed out at height %d (target %d) after %s\n",
				r.Node, r.FinalHeight, r.TargetHeight, elapsed)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%s: failed (%s): %s\n", r.Node, r.Cause, r.Error)
		}
	}
}

func renderJSON(cmd *cobra.Command, reports []types.WaitReport) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal reports: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// waitVerdict folds the per node outcomes into the command error. Failure
// outranks timeout when both occur across nodes.
func waitVerdict(reports []types.WaitReport) error {
	failed, timedOut := 0, 0
	for _, r := range reports {
		switch r.Status {
		case types.StatusFailed:
			failed++
		case types.StatusTimedOut:
			timedOut++
		}
	}

	switch {
	case failed > 0:
		return fmt.Errorf("%w on %d of %d nodes", ErrWaitFailed, failed, len(reports))
	case timedOut > 0:
		return fmt.Errorf("%w on %d of %d nodes", ErrWaitTimedOut, timedOut, len(reports))
	}
	return nil
}
