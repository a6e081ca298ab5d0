package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"syscall"

	"github.com/tartampluch/go-reminder/internal/config"
	"github.com/tartampluch/go-reminder/internal/engine"
	"github.com/tartampluch/go-reminder/internal/i18n"
	"github.com/tartampluch/go-reminder/internal/model"
	"github.com/tartampluch/go-reminder/internal/notify"
	"github.com/tartampluch/go-reminder/internal/registry"
	"github.com/tartampluch/go-reminder/internal/scheduler"
	"github.com/tartampluch/go-reminder/internal/server"
	"github.com/tartampluch/go-reminder/internal/store"
	"github.com/tartampluch/go-reminder/internal/weather"
)

// main is the application entry point.
// It delegates execution to runMain to ensure that deferred function calls
// (like closing log files) are executed before the process terminates.
// os.Exit() does not run defers, so we must return an integer code first.
func main() {
	os.Exit(runMain())
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
// Returns config.ExitCodeSuccess on success, config.ExitCodeError on failure.
func runMain() int {
	// -------------------------------------------------------------------------
	// 1. CLI Argument Parsing
	// -------------------------------------------------------------------------
	showVersion := flag.Bool(config.FlagVersion, false, config.FlagDescVersion)
	debugMode := flag.Bool(config.FlagDebug, false, config.FlagDescDebug)
	configPath := flag.String(config.FlagConfig, "", config.FlagDescConfig)
	runOnce := flag.Bool(config.FlagOnce, false, config.FlagDescOnce)
	flag.Parse()

	if *showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	// -------------------------------------------------------------------------
	// 2. Logging Initialization
	// -------------------------------------------------------------------------
	// We configure structured logging (slog) early to capture startup issues.
	logCloser := setupLogging(*debugMode)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close() // Best effort close
		}()
	}

	// -------------------------------------------------------------------------
	// 3. Context & Signal Handling
	// -------------------------------------------------------------------------
	// Create a root context that cancels on SIGINT (Ctrl+C) or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	// -------------------------------------------------------------------------
	// 4. Application Logic
	// -------------------------------------------------------------------------
	if err := run(ctx, *configPath, *runOnce); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// run wires the collaborators and drives the daemon until the context ends.
func run(ctx context.Context, configPath string, runOnce bool) error {
	// Settings.
	if configPath == "" {
		p, err := config.DefaultSettingsPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}

	dbPath := settings.DatabasePath
	if dbPath == "" {
		if dbPath, err = settings.DefaultDatabasePath(); err != nil {
			return err
		}
	}

	// Persistence.
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	state, err := db.Load(ctx)
	if err != nil {
		return err
	}
	slog.Info(config.MsgStoreLoaded,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyPath, dbPath,
		config.LogKeyCount, len(state.Alarms)+len(state.Events)+len(state.Notifications),
	)

	// Registries and the notification center. Any mutation marks the state
	// dirty so the flush job knows a snapshot is due.
	var dirty atomic.Bool
	markDirty := func() { dirty.Store(true) }

	clock := engine.RealClock{}
	alarms := registry.NewAlarmRegistry(clock, markDirty)
	events := registry.NewCalendarRegistry(clock, markDirty)
	center := notify.NewCenter(clock, markDirty)

	alarms.Restore(state.Alarms)
	events.Restore(state.Events)
	center.Restore(state.Notifications)

	// Dispatcher.
	messages := i18n.New(settings.Language)
	dispatcher := &engine.Dispatcher{
		Clock:    clock,
		Alarms:   alarms,
		Events:   events,
		Center:   center,
		Messages: messages,
	}
	if !state.LastTick.IsZero() {
		dispatcher.RestoreLastTick(state.LastTick)
	}

	if runOnce {
		dispatcher.Tick()
		return flush(ctx, db, alarms, events, center, dispatcher)
	}

	// Calendar feed.
	srv := server.NewCalendarServer(settings.Port)
	if err := srv.Refresh(clock, events.List()); err != nil {
		return err
	}

	// Weather (optional; disabled without an API key).
	weatherSvc := &weather.Service{
		Fetcher:  weather.NewHTTPFetcher(),
		Sink:     center,
		Messages: messages,
		APIKey:   weather.LoadAPIKey(),
		Settings: settings.Weather,
	}

	// Periodic jobs.
	jobs := scheduler.New()
	if err := jobs.AddEvery(settings.TickInterval, func() {
		dispatcher.Tick()
	}); err != nil {
		return err
	}
	if err := jobs.AddEvery(settings.FlushInterval, func() {
		if !dirty.CompareAndSwap(true, false) {
			return
		}
		if err := flush(ctx, db, alarms, events, center, dispatcher); err != nil {
			slog.Error(config.ErrStoreFlush,
				config.LogKeyComponent, config.CompStore,
				config.LogKeyError, err,
			)
			dirty.Store(true)
			return
		}
		if err := srv.Refresh(clock, events.List()); err != nil {
			slog.Error(config.ErrICalEncode,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}); err != nil {
		return err
	}
	if weatherSvc.APIKey != "" {
		if err := jobs.AddEvery(settings.Weather.RefreshInterval, func() {
			if _, err := weatherSvc.Refresh(ctx); err != nil {
				slog.Warn(config.ErrWeatherExhausted,
					config.LogKeyComponent, config.CompWeather,
					config.LogKeyError, err.Error(),
				)
			}
		}); err != nil {
			return err
		}
	}

	jobs.Start()

	// The feed server blocks until the context is cancelled.
	if err := srv.Start(ctx); err != nil {
		jobs.Stop()
		return err
	}

	// Drain in-flight ticks before the final snapshot; flushing concurrently
	// could persist a tick's advanced watermark without its notifications.
	jobs.Stop()
	return flush(context.Background(), db, alarms, events, center, dispatcher)
}

// flush writes the current in-memory state to the database.
func flush(ctx context.Context, db *store.Store, alarms *registry.AlarmRegistry,
	events *registry.CalendarRegistry, center *notify.Center, d *engine.Dispatcher) error {
	err := db.Save(ctx, store.State{
		Alarms:        alarms.List(),
		Events:        events.List(),
		Notifications: center.List(model.Filter{}),
		LastTick:      d.LastTick(),
	})
	if err != nil {
		return err
	}
	slog.Debug(config.MsgStoreFlushed, config.LogKeyComponent, config.CompStore)
	return nil
}

// printVersion outputs the build information to stdout and exits.
func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger.
func setupLogging(debugMode bool) io.Closer {
	var writers []io.Writer
	var logFile *os.File

	// 1. Always write to Stdout.
	writers = append(writers, os.Stdout)

	// 2. Attempt to set up a file writer in the user's cache directory.
	if logPath, err := getLogFilePath(); err == nil {
		// O_TRUNC resets logs on restart to prevent indefinite growth.
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts))
	slog.SetDefault(logger)

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)

	// Ensure the directory exists with restricted permissions (700).
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}
