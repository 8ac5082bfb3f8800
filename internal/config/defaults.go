package config

const (
	defaultConfigPath       = "~/.config/emotrack/config.toml"
	defaultStorageRoot      = "~/.local/share/emotrack/media"
	defaultStateDir         = "~/.local/share/emotrack"
	defaultLogDir           = "~/.local/share/emotrack/logs"
	defaultAPIBind          = "127.0.0.1:7610"
	defaultClassifierPath   = "~/.local/share/emotrack/models/emotion_model.onnx"
	defaultCascadePath      = "~/.local/share/emotrack/models/haarcascade_frontalface_default.xml"
	defaultScaleFactor      = 1.3
	defaultMinNeighbors     = 5
	defaultMinFaceSize      = 30
	defaultRawSubdir        = "raw"
	defaultSnapshotSubdir   = "snapshots"
	defaultEmotionSubdir    = "emotion_class"
	defaultStreamSubdir     = "session_stream"
	defaultThumbnailSize    = 320
	defaultJPEGQuality      = 90
	defaultSnapshotInterval = 5
	defaultVideoFPS         = 12.0
	defaultIdleTimeout      = 300
	defaultReapInterval     = 30
	defaultMaxFrames        = 180
	defaultPreviewMaxFrames = 90
	defaultSampleRate       = 6
	defaultMaxUploadMiB     = 256
	defaultSummaryEntries   = 256
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageRoot: defaultStorageRoot,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Model: Model{
			ClassifierPath: defaultClassifierPath,
			CascadePath:    defaultCascadePath,
			ScaleFactor:    defaultScaleFactor,
			MinNeighbors:   defaultMinNeighbors,
			MinFaceSize:    defaultMinFaceSize,
		},
		Storage: Storage{
			RawSubdir:      defaultRawSubdir,
			SnapshotSubdir: defaultSnapshotSubdir,
			EmotionSubdir:  defaultEmotionSubdir,
			StreamSubdir:   defaultStreamSubdir,
			ThumbnailSize:  defaultThumbnailSize,
			JPEGQuality:    defaultJPEGQuality,
		},
		Session: Session{
			SnapshotInterval: defaultSnapshotInterval,
			VideoFPS:         defaultVideoFPS,
			IdleTimeout:      defaultIdleTimeout,
			ReapInterval:     defaultReapInterval,
		},
		Batch: Batch{
			MaxFrames:        defaultMaxFrames,
			PreviewMaxFrames: defaultPreviewMaxFrames,
			SampleRate:       defaultSampleRate,
			MaxUploadMiB:     defaultMaxUploadMiB,
		},
		Cache: Cache{
			SummaryEntries: defaultSummaryEntries,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
