package config

import "strings"

func (c *Config) normalize() {
	c.normalizePaths()
	c.normalizeAnalyzer()
	c.normalizeClassifier()
	c.normalizeProbes()
	c.normalizeNotifications()
	c.normalizeLogging()
}

func (c *Config) normalizePaths() {
	c.Paths.DataDir = expandPath(strings.TrimSpace(c.Paths.DataDir))
	c.Paths.InboxDir = expandPath(strings.TrimSpace(c.Paths.InboxDir))
	c.Paths.LibraryDir = expandPath(strings.TrimSpace(c.Paths.LibraryDir))
	c.Paths.LogDir = expandPath(strings.TrimSpace(c.Paths.LogDir))
}

func (c *Config) normalizeAnalyzer() {
	if c.Analyzer.Workers <= 0 {
		c.Analyzer.Workers = defaultWorkers
	}
	if c.Analyzer.SmoothingWindow <= 0 {
		c.Analyzer.SmoothingWindow = defaultSmoothingWindow
	}
	if c.Analyzer.SmoothingWindow%2 == 0 {
		c.Analyzer.SmoothingWindow++
	}
}

func (c *Config) normalizeClassifier() {
	c.Classifier.Endpoint = strings.TrimRight(strings.TrimSpace(c.Classifier.Endpoint), "/")
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = defaultClassifierTimeout
	}
	if c.Classifier.WarmupTimeoutSeconds <= 0 {
		c.Classifier.WarmupTimeoutSeconds = defaultWarmupTimeout
	}
	if c.Classifier.BatchSize <= 0 {
		c.Classifier.BatchSize = defaultClassifierBatch
	}
}

func (c *Config) normalizeProbes() {
	if strings.TrimSpace(c.Probes.FFprobeBinary) == "" {
		c.Probes.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Probes.FFmpegBinary) == "" {
		c.Probes.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Probes.ZbarimgBinary) == "" {
		c.Probes.ZbarimgBinary = defaultZbarimgBinary
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetention
	}
}
