package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMoveFileSameVolume(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a", "clip.mp4")
	dst := filepath.Join(dir, "b", "clip.mp4")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(src, []byte("video bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source still present: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(data) != "video bytes" {
		t.Fatalf("content mismatch: %q", data)
	}
}

func TestCopyFileVerifiesContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	payload := make([]byte, 1<<16)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("size mismatch: %d vs %d", len(got), len(payload))
	}
}

func TestFreeSpace(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	if err != nil {
		t.Fatalf("FreeSpace: %v", err)
	}
	if free == 0 {
		t.Fatal("free space reported as zero")
	}
}

func TestRemoveDirIfEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(full, "keep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := RemoveDirIfEmpty(empty); err != nil {
		t.Fatalf("RemoveDirIfEmpty empty: %v", err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Fatal("empty dir not removed")
	}
	if err := RemoveDirIfEmpty(full); err != nil {
		t.Fatalf("RemoveDirIfEmpty full: %v", err)
	}
	if _, err := os.Stat(full); err != nil {
		t.Fatal("non-empty dir should survive")
	}
	if err := RemoveDirIfEmpty(filepath.Join(dir, "missing")); err != nil {
		t.Fatalf("missing dir should be fine: %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Jane Doe", "Jane_Doe"},
		{"  Anna-Lena  Müller ", "Anna-Lena_Muller"},
		{"O'Brien & Söhne!!", "O_Brien_Sohne"},
		{"___", ""},
		{"", ""},
		{"René", "Rene"},
	}
	for _, tc := range cases {
		if got := SanitizeName(tc.in); got != tc.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
