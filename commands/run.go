package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/giygas/mhra-extractor/data"
	"github.com/giygas/mhra-extractor/health"
	"github.com/giygas/mhra-extractor/logging"
	"github.com/giygas/mhra-extractor/scheduler"
	"github.com/giygas/mhra-extractor/server"
)

const shutdownTimeout = 30 * time.Second

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawls the catalogue once, then writes and optionally uploads the snapshot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store := data.NewDataContainer()
		store.SetServerStartTime(time.Now())

		pipeline, closePipeline, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := closePipeline(); err != nil {
				logging.Warn("Failed to release run resources", "error", err)
			}
		}()

		s := scheduler.NewScheduler(ctx, store, pipeline, cfg.ScheduleTimes())

		var result *scheduler.RunResult
		g, gctx := errgroup.WithContext(ctx)
		stopServer := startStatusServer(g, store, cfg.ScheduleTimes())
		g.Go(func() error {
			defer stopServer()
			var runErr error
			result, runErr = s.RunOnce(gctx)
			return runErr
		})
		err = g.Wait()

		renderSummary(cmd.OutOrStdout(), result, err)
		return err
	},
}

// startStatusServer serves the status endpoints in g when an address is configured.
// The returned function shuts the server down.
func startStatusServer(g *errgroup.Group, store *data.DataContainer, at []string) func() {
	if cfg.StatusAddr == "" {
		return func() {}
	}
	srv := server.NewServer(cfg.StatusAddr, store, health.NewHealthChecker(store, at))
	g.Go(srv.Start)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logging.Error("Status server shutdown failed", "error", err)
		}
	}
}
