package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wemix/blockwait/internal/source"
)

// nodeStatus is one node's answer to a status query
type nodeStatus struct {
	Node   string `json:"node"`
	Height int64  `json:"height,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current chain height of each node",
		Long:  `Status queries every configured node once and prints its chain height.`,
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statuses := make([]nodeStatus, 0, len(cfg.RPCAddresses))
	unavailable := 0
	for _, addr := range cfg.RPCAddresses {
		src, err := source.FromConfig(cfg, addr)
		if err != nil {
			return err
		}

		st := nodeStatus{Node: src.Name()}
		if height, err := src.CurrentHeight(ctx); err != nil {
			st.Error = err.Error()
			unavailable++
		} else {
			st.Height = height
		}
		statuses = append(statuses, st)
	}

	if cfg.JSONOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal statuses: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		for _, st := range statuses {
			if st.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: unavailable (%s)\n", st.Node, st.Error)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: height %d\n", st.Node, st.Height)
			}
		}
	}

	if unavailable > 0 {
		return fmt.Errorf("%d of %d nodes unavailable", unavailable, len(statuses))
	}
	return nil
}
