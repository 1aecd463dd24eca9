package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"skysort/internal/logging"
)

const procMounts = "/proc/self/mounts"

var cameraFolderPattern = regexp.MustCompile(`^\d{3}[0-9A-Za-z_]+$`)

// MediaHandler is invoked with the mount point of newly attached camera media.
type MediaHandler func(ctx context.Context, mountPath string)

// MediaMonitor listens for udev netlink events and triggers ingestion when a
// removable filesystem with a camera layout appears. This eliminates the need
// for udev rules that call the CLI as root.
type MediaMonitor struct {
	logger     *slog.Logger
	handler    MediaHandler
	mountPoll  time.Duration
	mountsPath string

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func NewMediaMonitor(logger *slog.Logger, mountPoll time.Duration, handler MediaHandler) *MediaMonitor {
	if mountPoll <= 0 {
		mountPoll = 2 * time.Second
	}
	return &MediaMonitor{
		logger:     logging.NewComponentLogger(logger, "media-monitor"),
		handler:    handler,
		mountPoll:  mountPoll,
		mountsPath: procMounts,
	}
}

// Start begins listening for udev netlink events. A connection failure is
// non-fatal; folder analysis can still be triggered manually.
func (m *MediaMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; media detection will rely on manual triggers",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"))
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("media monitor started")
	return nil
}

// Stop shuts down the media monitor.
func (m *MediaMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("media monitor stopped")
}

// Running reports whether the monitor is active.
func (m *MediaMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *MediaMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"))
		}
	}
}

// buildMatcher matches mountable filesystems appearing on block devices:
// SUBSYSTEM=block, ID_FS_USAGE=filesystem, ACTION=add.
func (m *MediaMonitor) buildMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":   "block",
			"ID_FS_USAGE": "filesystem",
		},
	})
	return rules
}

func (m *MediaMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj))
		return
	}

	m.logger.Info("removable filesystem detected",
		logging.String("device", devname),
		logging.String("action", string(uevent.Action)))

	mountPath, err := m.awaitMount(ctx, devname)
	if err != nil {
		m.logger.Warn("device never mounted",
			logging.String("device", devname),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the automounter or mount the card manually"))
		return
	}

	folders := CameraFolders(mountPath)
	if len(folders) == 0 {
		m.logger.Debug("mounted filesystem has no camera layout",
			logging.String("mount", mountPath))
		return
	}

	m.logger.Info("camera media mounted",
		logging.String("device", devname),
		logging.String("mount", mountPath),
		logging.Int("folders", len(folders)))

	if m.handler != nil {
		m.handler(ctx, mountPath)
	}
}

// awaitMount polls the mount table until the device shows up or the wait
// times out.
func (m *MediaMonitor) awaitMount(ctx context.Context, device string) (string, error) {
	deadline := time.After(60 * time.Second)
	ticker := time.NewTicker(m.mountPoll)
	defer ticker.Stop()

	for {
		if mount, ok := mountPointForDevice(m.mountsPath, device); ok {
			return mount, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline:
			return "", context.DeadlineExceeded
		case <-ticker.C:
		}
	}
}

// CameraFolders returns the DCIM subfolders that look like camera capture
// directories, for example DCIM/100GOPRO.
func CameraFolders(mountPath string) []string {
	dcim := filepath.Join(mountPath, "DCIM")
	entries, err := os.ReadDir(dcim)
	if err != nil {
		return nil
	}
	var folders []string
	for _, entry := range entries {
		if entry.IsDir() && cameraFolderPattern.MatchString(entry.Name()) {
			folders = append(folders, filepath.Join(dcim, entry.Name()))
		}
	}
	return folders
}

// mountPointForDevice scans a mounts table in /proc format for the device and
// returns its mount point.
func mountPointForDevice(mountsPath, device string) (string, bool) {
	data, err := os.ReadFile(mountsPath)
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[0] == device {
			return unescapeMountPath(fields[1]), true
		}
	}
	return "", false
}

// unescapeMountPath decodes the octal escapes /proc/self/mounts uses for
// spaces, tabs, newlines, and backslashes.
func unescapeMountPath(path string) string {
	replacer := strings.NewReplacer(
		`\040`, " ",
		`\011`, "\t",
		`\012`, "\n",
		`\134`, `\`,
	)
	return replacer.Replace(path)
}

func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/dev/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return "/dev/" + parts[len(parts)-1]
}
