package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/trackfit/autobone/internal/autobone"
	"github.com/trackfit/autobone/internal/config"
	"github.com/trackfit/autobone/internal/dispatcher"
	"github.com/trackfit/autobone/internal/influx"
	"github.com/trackfit/autobone/internal/logging"
	intOtel "github.com/trackfit/autobone/internal/otel"
	"github.com/trackfit/autobone/internal/posestream"
	"github.com/trackfit/autobone/internal/recorder"
	"github.com/trackfit/autobone/internal/report"
	"github.com/trackfit/autobone/internal/skeleton"
	"github.com/trackfit/autobone/internal/storage"
	"github.com/trackfit/autobone/internal/storage/jsonfile"
	"github.com/trackfit/autobone/internal/worker"
	"github.com/trackfit/autobone/pkg/core"
)

// Version and BuildDate are set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const (
	appName       = "autobone"
	usageCommands = "record, save, process, apply, stop, cancel, wait[:record|save|process], status"
)

func newSkeleton(trackers []*core.Tracker) autobone.Skeleton {
	return skeleton.New(trackers)
}

type app struct {
	logs     *logging.Manager
	logger   *slog.Logger
	logFile  *os.File
	otel     *intOtel.Provider
	backend  storage.Backend
	influx   *influx.Manager
	manager  *worker.Manager
	dispatch *dispatcher.Dispatcher
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	flags := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	configDir := flags.String("config-dir", ".", "directory holding "+config.ConfigFileName)
	replay := flags.String("replay", "", "recording file replayed as live trackers for RECORD")
	toStdout := flags.Bool("stdout", false, "log to stdout instead of the logs directory")
	flags.String("logLevel", "info", "log level (debug, info, warn, error)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] command...\n\ncommands: %s\n\n", appName, usageCommands)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := config.BindFlags(flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{logs: logging.NewManager()}
	if err := a.setup(config.FilePath(*configDir), *replay, *toStdout); err != nil {
		a.logger.Error("Startup failed", "error", err)
		a.shutdown()
		return 1
	}
	defer a.shutdown()

	if flags.NArg() == 0 {
		flags.Usage()
		return 0
	}
	if err := a.runCommands(ctx, flags.Args(), stdout); err != nil {
		a.logger.Error("Command failed", "error", err)
		return 1
	}
	return 0
}

func (a *app) setup(configPath, replayPath string, toStdout bool) error {
	logCfg := config.GetLoggingConfig()
	a.logs.Setup(nil, logCfg.Level, nil)
	a.logger = a.logs.Logger()

	var logOut io.Writer = os.Stdout
	if !toStdout {
		f, err := logging.OpenLogFile(logCfg.LogsDir, appName, time.Now())
		if err != nil {
			return err
		}
		a.logFile = f
		logOut = f
	}

	var logProvider *sdklog.LoggerProvider
	if otelCfg := config.GetOtelConfig(); otelCfg.Enabled {
		cfg := intOtel.ConfigFrom(otelCfg, logOut)
		cfg.ServiceVersion = Version
		p, err := intOtel.New(cfg)
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			a.otel = p
			logProvider = p.LoggerProvider()
		}
	}

	running := func() []slog.Attr {
		if a.manager == nil {
			return nil
		}
		kinds := a.manager.RunningProcesses()
		if len(kinds) == 0 {
			return nil
		}
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = k.String()
		}
		return []slog.Attr{slog.Any("running", names)}
	}
	if toStdout {
		a.logs.Setup(nil, logCfg.Level, logProvider, logging.WithContext(running))
	} else {
		a.logs.Setup(a.logFile, logCfg.Level, logProvider, logging.WithContext(running))
	}
	a.logger = a.logs.Logger()
	a.logger.Info("Starting up", "version", Version, "build", BuildDate, "config", configPath)

	backend, err := storage.NewBackend(config.GetStorageConfig(), a.logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	a.backend = backend

	abCfg := config.GetAutoBoneConfig()
	engine := autobone.NewEngine(abCfg, config.NewSkeletonStore(configPath), newSkeleton, autobone.WithLogger(a.logger))

	deps := worker.Dependencies{
		Engine:  engine,
		Backend: backend,
		Logger:  a.logger,
	}
	if replayPath != "" {
		frames, err := jsonfile.ReadFile(replayPath)
		if err != nil {
			return fmt.Errorf("load replay %s: %w", replayPath, err)
		}
		a.logger.Info("Replaying recording as live trackers", "path", replayPath,
			"trackers", frames.TrackerCount(), "frames", frames.MaxFrameCount())
		deps.Recorder = recorder.New(recorder.NewReplaySource(frames), a.logger)
	}
	if abCfg.ExportDir != "" {
		deps.Exporter = &posestream.CSVExporter{Dir: abCfg.ExportDir, Factory: newSkeleton, Logger: a.logger}
	}

	a.manager, err = worker.NewManager(deps)
	if err != nil {
		return err
	}
	a.manager.AddListener(&statusLogger{logger: a.logger})

	zl := logging.NewZerolog(logOut, logCfg.Level)
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		im := influx.NewManager(influxCfg, zl)
		if err := im.Connect(context.Background()); err != nil {
			a.logger.Warn("InfluxDB export disabled", "error", err)
		} else {
			a.influx = im
			a.manager.AddListener(im)
		}
	}
	if reportCfg := config.GetReportConfig(); reportCfg.Enabled {
		a.manager.AddListener(report.NewChart(filepath.Clean(reportCfg.Dir), a.logger))
	}

	a.dispatch, err = dispatcher.New(logging.NewDispatcherLogger(zl))
	if err != nil {
		return err
	}
	a.manager.RegisterHandlers(a.dispatch)
	return nil
}

func (a *app) shutdown() {
	if a.dispatch != nil {
		a.dispatch.Close()
	}
	if a.manager != nil {
		a.manager.Close()
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.logger.Warn("Failed to close InfluxDB export", "error", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Warn("Failed to close storage", "error", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to shut down OTel", "error", err)
		}
	}
	if err := a.logs.Flush(ctx); err != nil {
		a.logger.Warn("Failed to flush logs", "error", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// statusLogger writes every process event to the log.
type statusLogger struct {
	worker.NopListener
	logger *slog.Logger
}

func (l *statusLogger) OnProcessStatus(s worker.ProcessStatus) {
	attrs := []any{"process", s.Type.String(), "message", s.Message}
	switch {
	case s.Completed && !s.Success:
		l.logger.Error("Process failed", append(attrs, "error", s.Err)...)
	case s.Completed:
		l.logger.Info("Process finished", attrs...)
	case s.Current >= 0:
		l.logger.Debug("Process progress", append(attrs, "current", s.Current, "total", s.Total, "eta", s.ETA)...)
	default:
		l.logger.Info("Process started", attrs...)
	}
}

func (l *statusLogger) OnEngineEnd(offsets map[core.SkeletonConfigOffset]float64) {
	l.logger.Info("Engine finished", "lengths", autobone.LengthsString(offsets))
}
