package config

const (
	defaultDataDir    = "~/.local/share/skysort"
	defaultInboxDir   = "~/footage/inbox"
	defaultLibraryDir = "~/footage/library"
	defaultLogDir     = "~/.local/share/skysort/logs"

	defaultWorkers           = 4
	defaultCoarseInterval    = 10.0
	defaultFineInterval      = 1.0
	defaultSmoothingWindow   = 3
	defaultMinSegmentSeconds = 3.0
	defaultMinFreeGiB        = 5

	defaultClassifierEndpoint = "http://127.0.0.1:8800"
	defaultClassifierTimeout  = 30
	defaultWarmupTimeout      = 120
	defaultClassifierBatch    = 16

	defaultFFprobeBinary = "ffprobe"
	defaultFFmpegBinary  = "ffmpeg"
	defaultZbarimgBinary = "zbarimg"

	defaultSettleSeconds    = 10
	defaultMountPollSeconds = 2

	defaultNotifyTimeout = 10

	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
	defaultLogRetention = 30
)

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			InboxDir:   defaultInboxDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
		},
		Analyzer: Analyzer{
			Workers:               defaultWorkers,
			Adaptive:              true,
			CoarseIntervalSeconds: defaultCoarseInterval,
			FineIntervalSeconds:   defaultFineInterval,
			SmoothingWindow:       defaultSmoothingWindow,
			MinSegmentSeconds:     defaultMinSegmentSeconds,
			MinFreeGiB:            defaultMinFreeGiB,
		},
		Classifier: Classifier{
			Endpoint:             defaultClassifierEndpoint,
			TimeoutSeconds:       defaultClassifierTimeout,
			WarmupTimeoutSeconds: defaultWarmupTimeout,
			BatchSize:            defaultClassifierBatch,
		},
		Probes: Probes{
			FFprobeBinary: defaultFFprobeBinary,
			FFmpegBinary:  defaultFFmpegBinary,
			ZbarimgBinary: defaultZbarimgBinary,
		},
		Watcher: Watcher{
			Enabled:          true,
			SettleSeconds:    defaultSettleSeconds,
			MountPollSeconds: defaultMountPollSeconds,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
			NotifyResolved:        true,
			NotifyNeedsManual:     true,
			NotifyErrors:          true,
			NotifyMediaDetected:   true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
