// Package config has the configuration of the extractor
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// Environments
const (
	EnvDevelopment = "dev"
	EnvStaging     = "staging"
	EnvProduction  = "prod"
	EnvTest        = "test"
)

// Test run preset, matching the constrained runs of the site maintainers.
const (
	TestLetter        = "A"
	TestMaxSubstances = 2
	TestMaxProducts   = 10
)

// ErrContradictoryCaps is returned when the test preset is combined with a different explicit sampling.
var ErrContradictoryCaps = errors.New("contradictory sampling caps")

// Config holds all application configuration
type Config struct {
	Env               string
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes

	BaseURL      string
	Headless     bool
	RequestDelay time.Duration // Minimum gap between the start of two requests
	FetchTimeout time.Duration
	MaxAttempts  int // Attempts per target, first one included
	RetryBase    time.Duration
	RetryMax     time.Duration

	VersionPrefix    string
	VersionLabel     string
	AutoVersionLabel bool // VersionLabel was derived from the date and follows it
	OutputDir        string
	BasePath         string

	Letters                 []string // Empty means every letter
	MaxSubstancesPerLetter  int      // 0 means no cap
	MaxProductsPerSubstance int      // 0 means no cap
	TestMode                bool

	StatusAddr string
	ScheduleAt string

	UploadEnabled     bool
	UploadBucket      string
	UploadPrefix      string
	UploadCredentials string
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if err := cfg.Resolve(time.Now()); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// FromEnv reads the environment without validating, so callers can apply
// command-line overrides before Resolve.
func FromEnv() (*Config, error) {
	delay, err := getSecondsEnvWithDefault("REQUEST_DELAY_SECONDS", 0.15)
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_DELAY_SECONDS: %w", err)
	}
	timeout, err := getSecondsEnvWithDefault("FETCH_TIMEOUT_SECONDS", 90)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT_SECONDS: %w", err)
	}
	retryBase, err := getSecondsEnvWithDefault("RETRY_BASE_SECONDS", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_BASE_SECONDS: %w", err)
	}
	retryMax, err := getSecondsEnvWithDefault("RETRY_MAX_SECONDS", 8)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_MAX_SECONDS: %w", err)
	}

	retentionWeeks, err := getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4) // 4 weeks default
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}
	maxLogFileSize, err := getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600) // 100MB default
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}
	headless, err := getBoolEnvWithDefault("HEADLESS", true)
	if err != nil {
		return nil, fmt.Errorf("invalid HEADLESS: %w", err)
	}
	maxAttempts, err := getIntEnvWithDefault("MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_ATTEMPTS: %w", err)
	}
	maxSubstances, err := getIntEnvWithDefault("MAX_SUBSTANCES_PER_LETTER", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_SUBSTANCES_PER_LETTER: %w", err)
	}
	maxProducts, err := getIntEnvWithDefault("MAX_PRODUCTS_PER_SUBSTANCE", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_PRODUCTS_PER_SUBSTANCE: %w", err)
	}
	uploadEnabled, err := getBoolEnvWithDefault("UPLOAD_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_ENABLED: %w", err)
	}

	cfg := &Config{
		Env:               getEnvWithDefault("ENV", EnvDevelopment),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: retentionWeeks,
		MaxLogFileSize:    maxLogFileSize,

		BaseURL:      getEnvWithDefault("MHRA_BASE_URL", "https://products.mhra.gov.uk"),
		Headless:     headless,
		RequestDelay: delay,
		FetchTimeout: timeout,
		MaxAttempts:  maxAttempts,
		RetryBase:    retryBase,
		RetryMax:     retryMax,

		VersionPrefix: getEnvWithDefault("VERSION_PREFIX", "4.0"),
		VersionLabel:  os.Getenv("VERSION_LABEL"),
		OutputDir:     getEnvWithDefault("OUTPUT_DIR", "public"),
		BasePath:      os.Getenv("BASE_PATH"),

		Letters:                 ParseLetters(os.Getenv("LETTERS")),
		MaxSubstancesPerLetter:  maxSubstances,
		MaxProductsPerSubstance: maxProducts,

		StatusAddr: os.Getenv("STATUS_ADDR"),
		ScheduleAt: getEnvWithDefault("SCHEDULE_AT", "06:00"),

		UploadEnabled:     uploadEnabled,
		UploadBucket:      os.Getenv("UPLOAD_BUCKET"),
		UploadPrefix:      getEnvWithDefault("UPLOAD_PREFIX", "mhra"),
		UploadCredentials: os.Getenv("UPLOAD_CREDENTIALS"),
	}

	return cfg, nil
}

// Resolve applies the test preset and the derived defaults, then validates every field.
func (c *Config) Resolve(now time.Time) error {
	if c.TestMode {
		if err := c.applyTestPreset(); err != nil {
			return err
		}
	}
	if c.VersionLabel == "" {
		c.VersionLabel = DefaultVersionLabel(c.VersionPrefix, now)
		c.AutoVersionLabel = true
	}
	if c.BasePath == "" {
		c.BasePath = c.OutputDir
	}
	return validateConfig(c)
}

func (c *Config) applyTestPreset() error {
	if len(c.Letters) > 0 && !slices.Equal(c.Letters, []string{TestLetter}) {
		return fmt.Errorf("%w: test run restricts letters to %s, got %v", ErrContradictoryCaps, TestLetter, c.Letters)
	}
	if c.MaxSubstancesPerLetter != 0 && c.MaxSubstancesPerLetter != TestMaxSubstances {
		return fmt.Errorf("%w: test run uses %d substances per letter, got %d", ErrContradictoryCaps, TestMaxSubstances, c.MaxSubstancesPerLetter)
	}
	if c.MaxProductsPerSubstance != 0 && c.MaxProductsPerSubstance != TestMaxProducts {
		return fmt.Errorf("%w: test run uses %d products per substance, got %d", ErrContradictoryCaps, TestMaxProducts, c.MaxProductsPerSubstance)
	}
	c.Letters = []string{TestLetter}
	c.MaxSubstancesPerLetter = TestMaxSubstances
	c.MaxProductsPerSubstance = TestMaxProducts
	return nil
}

// SelectedLetters returns the letters to walk, in index order.
func (c *Config) SelectedLetters() []string {
	if len(c.Letters) == 0 {
		return slices.Clone(entities.Letters)
	}
	return slices.Clone(c.Letters)
}

// ScheduleTimes splits SCHEDULE_AT into its HH:MM entries.
func (c *Config) ScheduleTimes() []string {
	var times []string
	for _, t := range strings.Split(c.ScheduleAt, ";") {
		if t = strings.TrimSpace(t); t != "" {
			times = append(times, t)
		}
	}
	return times
}

// VersionLabelAt is the label of a run started at now. A derived label follows
// the date, so long-running schedules get one label per day.
func (c *Config) VersionLabelAt(now time.Time) string {
	if c.AutoVersionLabel {
		return DefaultVersionLabel(c.VersionPrefix, now)
	}
	return c.VersionLabel
}

// DefaultVersionLabel builds "<major>.<minor>.DD.MM.YYYY" from the UTC date.
func DefaultVersionLabel(prefix string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%s.%02d.%02d.%d", prefix, now.Day(), int(now.Month()), now.Year())
}

// ParseLetters splits a comma separated letter filter, upper-casing each entry.
func ParseLetters(raw string) []string {
	var letters []string
	for _, l := range strings.Split(raw, ",") {
		if l = strings.ToUpper(strings.TrimSpace(l)); l != "" {
			letters = append(letters, l)
		}
	}
	return letters
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	// Validate ENV
	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	// Validate LOG_LEVEL
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	// Validate LOG_RETENTION_WEEKS
	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	// Validate MAX_LOG_FILE_SIZE
	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return fmt.Errorf("invalid MHRA_BASE_URL: %w", err)
	}

	if err := validateRequestDelay(cfg.RequestDelay); err != nil {
		return fmt.Errorf("invalid REQUEST_DELAY_SECONDS: %w", err)
	}

	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("invalid FETCH_TIMEOUT_SECONDS: must be positive, got: %s", cfg.FetchTimeout)
	}

	if cfg.MaxAttempts < 1 || cfg.MaxAttempts > 10 {
		return fmt.Errorf("invalid MAX_ATTEMPTS: must be between 1 and 10, got: %d", cfg.MaxAttempts)
	}

	if err := validateRetry(cfg.RetryBase, cfg.RetryMax); err != nil {
		return fmt.Errorf("invalid RETRY_BASE_SECONDS/RETRY_MAX_SECONDS: %w", err)
	}

	if err := validateLetters(cfg.Letters); err != nil {
		return fmt.Errorf("invalid LETTERS: %w", err)
	}

	if cfg.MaxSubstancesPerLetter < 0 {
		return fmt.Errorf("invalid MAX_SUBSTANCES_PER_LETTER: cannot be negative, got: %d", cfg.MaxSubstancesPerLetter)
	}
	if cfg.MaxProductsPerSubstance < 0 {
		return fmt.Errorf("invalid MAX_PRODUCTS_PER_SUBSTANCE: cannot be negative, got: %d", cfg.MaxProductsPerSubstance)
	}

	if strings.TrimSpace(cfg.VersionLabel) == "" {
		return fmt.Errorf("invalid VERSION_LABEL: cannot be empty")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return fmt.Errorf("invalid OUTPUT_DIR: cannot be empty")
	}

	if cfg.StatusAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.StatusAddr); err != nil {
			return fmt.Errorf("invalid STATUS_ADDR: %w", err)
		}
	}

	if err := validateSchedule(cfg.ScheduleTimes()); err != nil {
		return fmt.Errorf("invalid SCHEDULE_AT: %w", err)
	}

	if cfg.UploadEnabled && strings.TrimSpace(cfg.UploadBucket) == "" {
		return fmt.Errorf("invalid UPLOAD_BUCKET: required when upload is enabled")
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env string) error {
	if env == "" {
		return fmt.Errorf("ENV cannot be empty")
	}

	validEnvs := []string{EnvDevelopment, EnvStaging, EnvProduction, EnvTest}
	env = strings.ToLower(env)

	if slices.Contains(validEnvs, env) {
		return nil
	}

	return fmt.Errorf("ENV must be one of: %v, got: %s", validEnvs, env)
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	if slices.Contains(validLevels, logLevel) {
		return nil
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("MHRA_BASE_URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("MHRA_BASE_URL must be a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("MHRA_BASE_URL must be an absolute http(s) URL, got: %s", raw)
	}
	return nil
}

func validateRequestDelay(delay time.Duration) error {
	if delay < 0 {
		return fmt.Errorf("REQUEST_DELAY_SECONDS cannot be negative, got: %s", delay)
	}
	if delay > time.Minute {
		return fmt.Errorf("REQUEST_DELAY_SECONDS is too large (max 60s), got: %s", delay)
	}
	return nil
}

func validateRetry(base, max time.Duration) error {
	if base <= 0 {
		return fmt.Errorf("RETRY_BASE_SECONDS must be positive, got: %s", base)
	}
	if max < base {
		return fmt.Errorf("RETRY_MAX_SECONDS (%s) is lower than RETRY_BASE_SECONDS (%s)", max, base)
	}
	return nil
}

func validateLetters(letters []string) error {
	seen := make(map[string]struct{}, len(letters))
	for _, l := range letters {
		if !entities.IsKnownLetter(l) {
			return fmt.Errorf("unknown letter %q, expected one of A-Z or 0-9", l)
		}
		if _, dup := seen[l]; dup {
			return fmt.Errorf("letter %q listed twice", l)
		}
		seen[l] = struct{}{}
	}
	return nil
}

func validateSchedule(times []string) error {
	if len(times) == 0 {
		return fmt.Errorf("SCHEDULE_AT cannot be empty")
	}
	for _, t := range times {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("SCHEDULE_AT entry %q must be HH:MM", t)
		}
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value.
// A malformed value is an error.
func getIntEnvWithDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got: %s", key, value)
	}
	return intValue, nil
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value.
// A malformed value is an error.
func getInt64EnvWithDefault(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got: %s", key, value)
	}
	return intValue, nil
}

// getBoolEnvWithDefault gets an environment variable as bool with a default value.
// A malformed value is an error.
func getBoolEnvWithDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	boolValue, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s must be true or false, got: %s", key, value)
	}
	return boolValue, nil
}

// getSecondsEnvWithDefault reads a float number of seconds. A malformed value is an
// error rather than a silent default because it drives the request rate.
func getSecondsEnvWithDefault(key string, defaultValue float64) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return Seconds(defaultValue), nil
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("%s must be a number of seconds, got: %s", key, value)
	}
	return Seconds(seconds), nil
}

// Seconds converts a float number of seconds to a duration.
func Seconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MHRA_BASE_URL",
		"HEADLESS",
		"REQUEST_DELAY_SECONDS",
		"FETCH_TIMEOUT_SECONDS",
		"MAX_ATTEMPTS",
		"RETRY_BASE_SECONDS",
		"RETRY_MAX_SECONDS",
		"VERSION_PREFIX",
		"VERSION_LABEL",
		"OUTPUT_DIR",
		"BASE_PATH",
		"LETTERS",
		"MAX_SUBSTANCES_PER_LETTER",
		"MAX_PRODUCTS_PER_SUBSTANCE",
		"STATUS_ADDR",
		"SCHEDULE_AT",
		"UPLOAD_ENABLED",
		"UPLOAD_BUCKET",
		"UPLOAD_PREFIX",
		"UPLOAD_CREDENTIALS",
	}
}
