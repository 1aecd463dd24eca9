package main

import (
	"testing"

	"skysort/internal/catalog"
	"skysort/internal/deps"
)

func TestRenderStatus(t *testing.T) {
	report := statusReport{
		ConfigPath:   "/etc/skysort/config.toml",
		DatabasePath: "/var/lib/skysort/skysort.db",
		InboxDir:     "/mnt/footage/inbox",
		LibraryDir:   "/mnt/footage/library",
		Classifier:   "healthy",
		BatchCounts: map[catalog.BatchStatus]int{
			catalog.BatchImported:    3,
			catalog.BatchNeedsManual: 1,
		},
		Dependencies: []deps.Status{
			{Name: "ffprobe", Available: true},
			{Name: "zbarimg", Optional: true, Available: false},
		},
	}

	out := renderStatus(report)
	requireContains(t, out, "/etc/skysort/config.toml")
	requireContains(t, out, "healthy")
	requireContains(t, out, "imported")
	requireContains(t, out, "needs_manual")
	requireContains(t, out, "ffprobe")
	requireContains(t, out, "missing (optional)")
}

func TestDependencyState(t *testing.T) {
	cases := []struct {
		status deps.Status
		want   string
	}{
		{deps.Status{Available: true}, "ok"},
		{deps.Status{Available: false}, "missing"},
		{deps.Status{Available: false, Optional: true}, "missing (optional)"},
	}
	for _, tc := range cases {
		if got := dependencyState(tc.status); got != tc.want {
			t.Fatalf("dependencyState(%+v) = %q, want %q", tc.status, got, tc.want)
		}
	}
}
