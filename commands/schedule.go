package commands

import (
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/giygas/mhra-extractor/data"
	"github.com/giygas/mhra-extractor/logging"
	"github.com/giygas/mhra-extractor/scheduler"
)

func init() {
	scheduleCmd.Flags().String("at", "", `Daily run times, ";" separated (default from SCHEDULE_AT, "06:00").`)
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule [--at HH:MM;HH:MM]",
	Short: "Runs the extraction now and then daily at the configured times until interrupted.",
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

		at := cfg.ScheduleTimes()
		g, gctx := errgroup.WithContext(ctx)
		s := scheduler.NewScheduler(gctx, store, pipeline, at)

		stopServer := startStatusServer(g, store, at)
		g.Go(func() error {
			defer stopServer()
			if err := s.Start(); err != nil {
				return err
			}
			<-gctx.Done()
			logging.Info("Stopping scheduler...")
			s.Stop()
			return nil
		})
		return g.Wait()
	},
}
