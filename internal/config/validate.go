package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAnalyzer(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must be set")
	}
	if c.Paths.InboxDir == "" {
		return fmt.Errorf("paths.inbox_dir must be set")
	}
	if c.Paths.LibraryDir == "" {
		return fmt.Errorf("paths.library_dir must be set")
	}
	if c.Paths.InboxDir == c.Paths.LibraryDir {
		return fmt.Errorf("paths.inbox_dir and paths.library_dir must differ")
	}
	return nil
}

func (c *Config) validateAnalyzer() error {
	if c.Analyzer.CoarseIntervalSeconds <= 0 {
		return fmt.Errorf("analyzer.coarse_interval_seconds must be positive, got %v", c.Analyzer.CoarseIntervalSeconds)
	}
	if c.Analyzer.FineIntervalSeconds <= 0 {
		return fmt.Errorf("analyzer.fine_interval_seconds must be positive, got %v", c.Analyzer.FineIntervalSeconds)
	}
	if c.Analyzer.FineIntervalSeconds >= c.Analyzer.CoarseIntervalSeconds {
		return fmt.Errorf("analyzer.fine_interval_seconds (%v) must be smaller than analyzer.coarse_interval_seconds (%v)",
			c.Analyzer.FineIntervalSeconds, c.Analyzer.CoarseIntervalSeconds)
	}
	if c.Analyzer.MinSegmentSeconds < 0 {
		return fmt.Errorf("analyzer.min_segment_seconds must not be negative, got %v", c.Analyzer.MinSegmentSeconds)
	}
	if c.Analyzer.MinFreeGiB < 0 {
		return fmt.Errorf("analyzer.min_free_gib must not be negative, got %d", c.Analyzer.MinFreeGiB)
	}
	return nil
}

func (c *Config) validateClassifier() error {
	if c.Classifier.Endpoint == "" {
		return fmt.Errorf("classifier.endpoint must be set")
	}
	parsed, err := url.Parse(c.Classifier.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("classifier.endpoint must be a full URL, got %q", c.Classifier.Endpoint)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
