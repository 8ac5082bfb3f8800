package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"emotrack/internal/analyzer"
	"emotrack/internal/config"
	"emotrack/internal/daemon"
	"emotrack/internal/logging"
	"emotrack/internal/logs"
	"emotrack/internal/media"
	"emotrack/internal/results"
	"emotrack/internal/services"
	"emotrack/internal/vision/opencv"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
}

// Run starts the emotrack daemon and blocks until it receives SIGINT or
// SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("emotrack-%s.log", runID))
	logHub := logging.NewStreamHub(4096)

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		Stream:           logHub,
		RunID:            runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if opts.Diagnostic {
		debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
		debugLogPath := filepath.Join(debugDir, fmt.Sprintf("emotrack-%s.log", runID))
		if err := os.MkdirAll(debugDir, 0o755); err != nil {
			return fmt.Errorf("create debug log directory: %w", err)
		}
		debugLogger, debugErr := logging.New(logging.Options{
			Level:            "debug",
			Format:           "json",
			OutputPaths:      []string{debugLogPath},
			ErrorOutputPaths: []string{debugLogPath},
			Development:      true,
			RunID:            runID,
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
			if err := ensureCurrentLogPointer(debugDir, debugLogPath); err != nil {
				fmt.Fprintf(os.Stderr, "warn: unable to update debug/emotrack.log link: %v\n", err)
			}
		}
		logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String("debug_log_path", debugLogPath),
		)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update emotrack.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "emotrack-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "debug"), Pattern: "emotrack-*.log"},
	)
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := results.Open(cfg)
	if err != nil {
		logger.Error("open results store", logging.Error(err))
		return err
	}
	defer store.Close()

	mediaStore, err := media.New(media.Layout{
		Root:           cfg.Paths.StorageRoot,
		RawSubdir:      cfg.Storage.RawSubdir,
		SnapshotSubdir: cfg.Storage.SnapshotSubdir,
		EmotionSubdir:  cfg.Storage.EmotionSubdir,
		StreamSubdir:   cfg.Storage.StreamSubdir,
		ThumbnailSize:  cfg.Storage.ThumbnailSize,
		JPEGQuality:    cfg.Storage.JPEGQuality,
	})
	if err != nil {
		return fmt.Errorf("prepare media store: %w", err)
	}

	detector, closeDetector := openDetector(cfg, logger)
	defer closeDetector()

	an, err := analyzer.New(analyzer.Options{
		Detector:    detector,
		Loader:      opencv.LoadClassifier,
		ModelPath:   cfg.Model.ClassifierPath,
		CascadePath: cfg.Model.CascadePath,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}

	d, err := daemon.New(daemon.Options{
		Config:         cfg,
		Store:          store,
		Media:          mediaStore,
		Analyzer:       an,
		NewVideoWriter: opencv.OpenVideoWriter,
		OpenVideo:      openVideo,
		Logger:         logger,
		LogHub:         logHub,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for another running instance and the api_bind address"),
		)
		return err
	}
	defer d.Stop()

	<-signalCtx.Done()
	logger.Info("emotrack daemon shutting down")
	return nil
}

// openDetector loads the face cascade. A missing or unreadable cascade does not
// stop the daemon; every analysis then fails with model_unavailable.
func openDetector(cfg *config.Config, logger *slog.Logger) (analyzer.FaceDetector, func()) {
	cascade, err := opencv.NewCascadeDetector(cfg.Model.CascadePath, cfg.Model.ScaleFactor, cfg.Model.MinNeighbors, cfg.Model.MinFaceSize)
	if err != nil {
		logging.WarnWithContext(logger, "face cascade unavailable", "cascade_load_failed",
			logging.Alert("model_unavailable"),
			logging.Error(err),
			logging.String("cascade_path", cfg.Model.CascadePath),
			logging.String(logging.FieldImpact, "frame analysis disabled until the cascade is installed and the daemon restarted"),
			logging.String(logging.FieldErrorHint, "run emotrack preflight"),
		)
		if !errors.Is(err, services.ErrModelUnavailable) {
			err = services.Wrap(services.ErrModelUnavailable, "daemonrun", "load cascade", cfg.Model.CascadePath, err)
		}
		return unavailableDetector{err: err}, func() {}
	}
	return cascade, func() { _ = cascade.Close() }
}

type unavailableDetector struct {
	err error
}

func (d unavailableDetector) DetectFaces(*image.Gray) ([]image.Rectangle, error) {
	return nil, d.err
}

func openVideo(path string) (analyzer.FrameSource, error) {
	video, err := opencv.OpenVideo(path)
	if err != nil {
		return nil, err
	}
	return video, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logs.CurrentFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("model_present", fileExists(cfg.Model.ClassifierPath)),
		logging.String("model_path", cfg.Model.ClassifierPath),
		logging.Bool("cascade_present", fileExists(cfg.Model.CascadePath)),
		logging.String("cascade_path", cfg.Model.CascadePath),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Duration("idle_timeout", cfg.IdleTimeout()),
	)
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
