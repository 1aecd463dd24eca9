package deps

import (
	"os"
	"path/filepath"
	"testing"

	"skysort/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestCheckBinariesUnconfigured(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "Empty", Command: "   "}})
	if results[0].Available {
		t.Fatal("expected unconfigured command to be unavailable")
	}
	if results[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail: %s", results[0].Detail)
	}
}

func TestRequiredCoversConfiguredProbes(t *testing.T) {
	cfg := config.Default()
	cfg.Probes.FFprobeBinary = "/opt/ffprobe"
	reqs := Required(&cfg)
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "/opt/ffprobe" {
		t.Fatalf("ffprobe command = %q", reqs[0].Command)
	}
	if !reqs[2].Optional {
		t.Fatal("zbarimg should be optional")
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := []Status{
		{Name: "ffprobe", Available: false},
		{Name: "zbarimg", Available: false, Optional: true},
		{Name: "ffmpeg", Available: true},
	}
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0] != "ffprobe" {
		t.Fatalf("missing = %v", missing)
	}
}
