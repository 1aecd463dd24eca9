package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skysort/internal/services"
)

func newTestLogger(buf *bytes.Buffer, color bool) *slog.Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	return slog.New(newConsoleHandler(buf, lvl, false, color))
}

func TestConsoleHandlerPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLogger(newTestLogger(&buf, false), "analyzer")
	logger.Info("folder queued", String("path", "/footage/inbox/card01"))

	line := buf.String()
	if !strings.Contains(line, "INFO  analyzer: folder queued") {
		t.Fatalf("component not promoted into prefix: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component attr should be consumed: %q", line)
	}
	if !strings.Contains(line, "path=/footage/inbox/card01") {
		t.Fatalf("missing path attribute: %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, false)
	logger.Warn("skip", String("reason", "no space left"))
	if !strings.Contains(buf.String(), `reason="no space left"`) {
		t.Fatalf("value with spaces not quoted: %q", buf.String())
	}
}

func TestConsoleHandlerColor(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, true)
	logger.Error("boom")
	if !strings.Contains(buf.String(), ansiRed) {
		t.Fatalf("expected ANSI color in output: %q", buf.String())
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(&buf, false)

	ctx := services.WithBatchID(context.Background(), 42)
	ctx = services.WithFile(ctx, "GX010001.MP4")
	ctx = services.WithStage(ctx, "classify")

	WithContext(ctx, base).Info("sampling")
	line := buf.String()
	for _, want := range []string{"batch_id=42", "file=GX010001.MP4", "stage=classify"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "batch-1.log")
	active := filepath.Join(dir, "skysort.log")
	for _, p := range []string{old, active} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		stale := time.Now().AddDate(0, 0, -60)
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatalf("chtimes %s: %v", p, err)
		}
	}

	CleanupOldLogs(NewNop(), 30, dir, "*.log", "skysort.log")

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("old log should be pruned, stat err = %v", err)
	}
	if _, err := os.Stat(active); err != nil {
		t.Fatalf("active log should survive: %v", err)
	}
}
