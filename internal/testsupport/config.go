package testsupport

import (
	"path/filepath"
	"testing"

	"skysort/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.InboxDir = filepath.Join(base, "inbox")
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Analyzer.Workers = 2
	cfgVal.Analyzer.MinFreeGiB = 0
	cfgVal.Classifier.Endpoint = "http://127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithClassifierEndpoint points the test config at a live classifier server,
// typically an httptest server URL.
func WithClassifierEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Classifier.Endpoint = endpoint
	}
}

// WithSamplingIntervals overrides the coarse and fine sampling intervals.
func WithSamplingIntervals(coarse, fine float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analyzer.CoarseIntervalSeconds = coarse
		b.cfg.Analyzer.FineIntervalSeconds = fine
	}
}

// WithWorkers overrides the analyzer pool width.
func WithWorkers(workers int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analyzer.Workers = workers
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
