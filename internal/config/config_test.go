package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Analyzer.Workers != defaultWorkers {
		t.Fatalf("workers = %d, want %d", cfg.Analyzer.Workers, defaultWorkers)
	}
	if cfg.Classifier.Endpoint != defaultClassifierEndpoint {
		t.Fatalf("endpoint = %q, want %q", cfg.Classifier.Endpoint, defaultClassifierEndpoint)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
inbox_dir = "` + dir + `/inbox"
library_dir = "` + dir + `/library"
log_dir = "` + dir + `/logs"

[analyzer]
workers = 8
smoothing_window = 4

[classifier]
endpoint = "http://10.0.0.5:9000/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Analyzer.Workers != 8 {
		t.Fatalf("workers = %d, want 8", cfg.Analyzer.Workers)
	}
	if cfg.Analyzer.SmoothingWindow != 5 {
		t.Fatalf("smoothing window = %d, want odd value 5", cfg.Analyzer.SmoothingWindow)
	}
	if cfg.Classifier.Endpoint != "http://10.0.0.5:9000" {
		t.Fatalf("endpoint = %q, want trailing slash trimmed", cfg.Classifier.Endpoint)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "same inbox and library",
			mutate: func(c *Config) { c.Paths.LibraryDir = c.Paths.InboxDir },
			want:   "must differ",
		},
		{
			name:   "fine not smaller than coarse",
			mutate: func(c *Config) { c.Analyzer.FineIntervalSeconds = 10.0 },
			want:   "must be smaller",
		},
		{
			name:   "bad endpoint",
			mutate: func(c *Config) { c.Classifier.Endpoint = "not a url" },
			want:   "full URL",
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Logging.Format = "yaml" },
			want:   "logging.format",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.normalize()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate accepted invalid config")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[analyzer]") {
		t.Fatalf("sample config missing analyzer section")
	}
	if err := WriteSample(path); err == nil {
		t.Fatalf("WriteSample overwrote existing file")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.InboxDir = filepath.Join(dir, "inbox")
	cfg.Paths.LibraryDir = filepath.Join(dir, "library")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, p := range []string{cfg.Paths.DataDir, cfg.Paths.InboxDir, cfg.Paths.LibraryDir, cfg.Paths.LogDir} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("directory %s not created: %v", p, err)
		}
	}
}
