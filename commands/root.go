// Package commands holds the cobra command tree of the extractor.
package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/giygas/mhra-extractor/config"
	"github.com/giygas/mhra-extractor/logging"
)

var (
	cfg       *config.Config
	overrides flagOverrides
)

var rootCmd = &cobra.Command{
	Use:           "mhra-extractor",
	Short:         "mhra-extractor crawls the MHRA products site and writes the document catalogue snapshots.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd, time.Now())
		if err != nil {
			return err
		}
		cfg = loaded

		logging.InitLogger(logging.Options{
			Dir:            cfg.LogDir,
			RetentionWeeks: cfg.LogRetentionWeeks,
			MaxFileSize:    cfg.MaxLogFileSize,
			Level:          logging.ParseLevel(cfg.LogLevel),
		})
		return nil
	},
}

func init() {
	overrides.register(rootCmd)
}

// ExecuteContext runs the command selected by the arguments.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
