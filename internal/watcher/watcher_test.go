package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"skysort/internal/logging"
)

func TestFolderWatcherDispatchesAfterSettle(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	var dispatched []string
	handler := func(_ context.Context, path string) {
		mu.Lock()
		dispatched = append(dispatched, path)
		mu.Unlock()
	}

	w := NewFolderWatcher(root, 100*time.Millisecond, handler, logging.NewNop())
	w.tick = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(ctx); err != nil {
			t.Errorf("Start: %v", err)
		}
	}()

	// Give the watcher a moment to register before creating the folder.
	time.Sleep(50 * time.Millisecond)
	folder := filepath.Join(root, "card01")
	if err := os.Mkdir(folder, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(folder, "clip.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		count := len(dispatched)
		mu.Unlock()
		if count > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("folder never dispatched")
		case <-time.After(20 * time.Millisecond):
		}
	}

	mu.Lock()
	got := dispatched[0]
	mu.Unlock()
	if got != folder {
		t.Fatalf("dispatched %q, want %q", got, folder)
	}

	cancel()
	<-done
}

func TestFolderWatcherWaitsWhileGrowing(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "card02")
	if err := os.Mkdir(folder, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var mu sync.Mutex
	count := 0
	w := NewFolderWatcher(root, 150*time.Millisecond, func(context.Context, string) {
		mu.Lock()
		count++
		mu.Unlock()
	}, logging.NewNop())
	w.tick = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Keep appending while the settle window would otherwise elapse.
	path := filepath.Join(folder, "clip.mp4")
	for i := 0; i < 5; i++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, err := f.WriteString("chunk"); err != nil {
			t.Fatalf("write: %v", err)
		}
		f.Close()
		mu.Lock()
		fired := count
		mu.Unlock()
		if fired != 0 {
			t.Fatal("dispatched while folder was still growing")
		}
		time.Sleep(60 * time.Millisecond)
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		fired := count
		mu.Unlock()
		if fired == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("dispatch count = %d, want 1", fired)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestFolderWatcherPicksUpExistingFolders(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "leftover")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(folder, "clip.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dispatched := make(chan string, 1)
	w := NewFolderWatcher(root, 50*time.Millisecond, func(_ context.Context, path string) {
		select {
		case dispatched <- path:
		default:
		}
	}, logging.NewNop())
	w.tick = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	select {
	case got := <-dispatched:
		if got != folder {
			t.Fatalf("dispatched %q, want %q", got, folder)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("existing folder never dispatched")
	}
}

func TestCameraFolders(t *testing.T) {
	mount := t.TempDir()
	dcim := filepath.Join(mount, "DCIM")
	for _, name := range []string{"100GOPRO", "101GOPRO", "MISC"} {
		if err := os.MkdirAll(filepath.Join(dcim, name), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dcim, "leftover.bin"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	folders := CameraFolders(mount)
	if len(folders) != 2 {
		t.Fatalf("folders = %v, want the two numbered capture dirs", folders)
	}

	if got := CameraFolders(t.TempDir()); got != nil {
		t.Fatalf("expected nil for mount without DCIM, got %v", got)
	}
}

func TestMountPointForDevice(t *testing.T) {
	mounts := filepath.Join(t.TempDir(), "mounts")
	table := "/dev/sda1 / ext4 rw 0 0\n" +
		"/dev/sdb1 /media/gopro\\040card vfat rw 0 0\n"
	if err := os.WriteFile(mounts, []byte(table), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	mount, ok := mountPointForDevice(mounts, "/dev/sdb1")
	if !ok {
		t.Fatal("device not found in mount table")
	}
	if mount != "/media/gopro card" {
		t.Fatalf("mount = %q", mount)
	}

	if _, ok := mountPointForDevice(mounts, "/dev/sdc1"); ok {
		t.Fatal("unexpected match for unmounted device")
	}
}
