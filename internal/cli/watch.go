package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wemix/blockwait/internal/api"
	"github.com/wemix/blockwait/internal/config"
	"github.com/wemix/blockwait/internal/metrics"
	"github.com/wemix/blockwait/internal/source"
	"github.com/wemix/blockwait/internal/track"
	"github.com/wemix/blockwait/pkg/logger"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously track chain height and serve it over HTTP",
		Long: `Watch polls the primary node's chain height on an interval and keeps
the latest observation available through the REST API, the WebSocket
feed and the Prometheus metrics endpoint.

Example:
  blockwait watch --rpc-addr localhost:8588 --api --metrics`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}

	cmd.Flags().Duration("track-interval", config.DefaultTrackInterval, "Interval between height observations")
	cmd.Flags().Bool("metrics", false, "Serve Prometheus metrics")
	cmd.Flags().Int("metrics-port", config.DefaultMetricsPort, "Port for the metrics endpoint")
	cmd.Flags().Bool("api", false, "Serve the REST and WebSocket API")
	cmd.Flags().Int("api-port", config.DefaultAPIPort, "Port for the API server")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := source.FromConfig(cfg, cfg.PrimaryRPCAddress())
	if err != nil {
		return err
	}

	log.Info("starting watch",
		zap.String("source", src.Name()),
		zap.Duration("track_interval", cfg.TrackInterval.Duration),
		zap.Bool("metrics", cfg.MetricsEnabled),
		zap.Bool("api", cfg.APIEnabled))

	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.NewRecorder(log)
		exporter := metrics.NewExporter(recorder, cfg.MetricsPort, cfg.MetricsPath, log)
		if err := exporter.Start(); err != nil {
			return fmt.Errorf("failed to start metrics exporter: %w", err)
		}
		defer exporter.Stop()
	}

	tracker := track.NewTracker(src, cfg.TrackInterval.Duration, log, recorder)
	if err := tracker.Start(); err != nil {
		return fmt.Errorf("failed to start tracker: %w", err)
	}
	defer tracker.Stop()

	if cfg.APIEnabled {
		server := api.NewServer(cfg, tracker, recorder, log)
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer server.Stop()
	}

	// Running settings are fixed for the life of the process; file changes
	// are surfaced so an operator knows a restart is needed.
	if path := configFilePath(cmd); path != "" {
		manager, err := config.NewManager(path, log)
		if err != nil {
			return fmt.Errorf("failed to watch config file: %w", err)
		}
		defer manager.Stop()
		go reportConfigChanges(ctx, manager, log)
	}

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// reportConfigChanges drains config file update events until ctx ends
func reportConfigChanges(ctx context.Context, manager *config.Manager, log *logger.Logger) {
	updates := manager.GetUpdateChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Error != nil {
				log.Warn("config file change rejected",
					zap.String("path", u.Path),
					zap.Error(u.Error))
				continue
			}
			log.Info("config file changed, restart to apply",
				zap.String("path", u.Path))
		}
	}
}
