package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/giygas/mhra-extractor/config"
)

// flagOverrides are the command-line values that take precedence over the
// environment. Only flags set explicitly are applied.
type flagOverrides struct {
	logLevel      string
	noHeadless    bool
	requestDelay  float64
	versionLabel  string
	outputDir     string
	basePath      string
	letters       string
	maxSubstances int
	maxProducts   int
	testMode      bool
	statusAddr    string
	upload        bool
	bucket        string
	credentials   string
}

func (o *flagOverrides) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn or error.")
	flags.BoolVar(&o.noHeadless, "no-headless", false, "Ask the page source for a visible browser.")
	flags.Float64Var(&o.requestDelay, "request-delay", 0, "Minimum seconds between the start of two requests.")
	flags.StringVar(&o.versionLabel, "version-label", "", "Label recorded in the update certificate.")
	flags.StringVar(&o.outputDir, "output-dir", "", "Directory receiving the latest artifacts and the Version N folders.")
	flags.StringVar(&o.basePath, "base-path", "", "Root of the folder structure mapping.")
	flags.StringVar(&o.letters, "letters", "", "Comma separated letters to crawl.")
	flags.IntVar(&o.maxSubstances, "max-substances", 0, "Maximum substances per letter, 0 for no cap.")
	flags.IntVar(&o.maxProducts, "max-products", 0, "Maximum products per substance, 0 for no cap.")
	flags.BoolVar(&o.testMode, "test", false, "Constrained run: letter A, 2 substances, 10 products.")
	flags.StringVar(&o.statusAddr, "status-addr", "", "Address of the status server, empty to disable it.")
	flags.BoolVar(&o.upload, "upload", false, "Upload the artifacts to the storage bucket.")
	flags.StringVar(&o.bucket, "bucket", "", "Storage bucket for the upload.")
	flags.StringVar(&o.credentials, "credentials", "", "Service account JSON for the upload.")
}

func (o *flagOverrides) apply(cmd *cobra.Command, c *config.Config) {
	changed := cmd.Flags().Changed

	if changed("log-level") {
		c.LogLevel = o.logLevel
	}
	if changed("no-headless") {
		c.Headless = !o.noHeadless
	}
	if changed("request-delay") {
		c.RequestDelay = config.Seconds(o.requestDelay)
	}
	if changed("version-label") {
		c.VersionLabel = o.versionLabel
	}
	if changed("output-dir") {
		c.OutputDir = o.outputDir
	}
	if changed("base-path") {
		c.BasePath = o.basePath
	}
	if changed("letters") {
		c.Letters = config.ParseLetters(o.letters)
	}
	if changed("max-substances") {
		c.MaxSubstancesPerLetter = o.maxSubstances
	}
	if changed("max-products") {
		c.MaxProductsPerSubstance = o.maxProducts
	}
	if changed("test") {
		c.TestMode = o.testMode
	}
	if changed("status-addr") {
		c.StatusAddr = o.statusAddr
	}
	if changed("upload") {
		c.UploadEnabled = o.upload
	}
	if changed("bucket") {
		c.UploadBucket = o.bucket
	}
	if changed("credentials") {
		c.UploadCredentials = o.credentials
	}
	if changed("at") {
		if at, err := cmd.Flags().GetString("at"); err == nil {
			c.ScheduleAt = at
		}
	}
}

// loadConfig reads the environment, applies the flags and validates the result.
func loadConfig(cmd *cobra.Command, now time.Time) (*config.Config, error) {
	c, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	overrides.apply(cmd, c)
	if err := c.Resolve(now); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return c, nil
}
