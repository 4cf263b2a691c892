// Command vaani runs the Bharat Bhai voice assistant as a microphone loop, a
// text console, or an HTTP/WebSocket API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vaani/internal/app"
	"github.com/MrWong99/vaani/internal/config"
	"github.com/MrWong99/vaani/internal/observe"
	"github.com/MrWong99/vaani/pkg/audio/mic"
	"github.com/MrWong99/vaani/pkg/audio/playback"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.StringP("config", "c", "vaani.yaml", "path to the YAML configuration file")
	envFile := flag.StringP("env-file", "e", ".env", "dotenv file loaded before the config")
	mode := flag.StringP("mode", "m", "", "front end to run: voice, text or server (overrides config)")
	logLevel := flag.StringP("log-level", "l", "", "log level: debug, info, warn or error (overrides config)")
	watch := flag.BoolP("watch", "w", false, "reload the config file when it changes")
	flag.Parse()

	// ── Environment ───────────────────────────────────────────────────────────
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "vaani: load %s: %v\n", *envFile, err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vaani: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vaani: %v\n", err)
		}
		return 1
	}
	if *mode != "" {
		cfg.Server.Mode = config.Mode(*mode)
	}
	if *logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(*logLevel)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "vaani: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(parseLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(&level))

	slog.Info("vaani starting",
		"version", version,
		"config", *configPath,
		"mode", cfg.Server.Mode,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "vaani",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, closers, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	opts := []app.Option{app.WithMetrics(metrics)}
	for _, c := range closers {
		opts = append(opts, app.WithCloser(c))
	}

	// ── Audio devices ─────────────────────────────────────────────────────────
	if cfg.Server.Mode == config.ModeVoice {
		rec, err := mic.New(
			mic.WithSampleRate(cfg.Audio.SampleRate),
			mic.WithTimeout(cfg.Audio.Timeout),
			mic.WithPhraseLimit(cfg.Audio.PhraseLimit),
			mic.WithSilenceDuration(cfg.Audio.SilenceDuration),
			mic.WithThreshold(cfg.Audio.SilenceThreshold),
		)
		if err != nil {
			slog.Error("failed to open microphone", "err", err)
			return 1
		}
		opts = append(opts, app.WithRecorder(rec), app.WithCloser(rec.Close))
	}
	if cfg.Server.Mode != config.ModeServer && cfg.Audio.PlaybackEnabled() {
		opts = append(opts, app.WithPlayer(playback.New(playback.WithSampleRate(cfg.Audio.SampleRate))))
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	g.Go(func() error {
		// The console front ends end on their own; take the watcher down with them.
		defer cancelRun()
		return application.Run(runCtx)
	})

	if *watch {
		w, err := config.NewWatcher(*configPath, func(prev, next *config.Config) {
			d := config.Diff(prev, next)
			if d.LogLevelChanged {
				level.Set(parseLevel(d.NewLogLevel))
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			application.ApplyConfig(d)
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			g.Go(func() error { return w.Run(runCtx) })
			slog.Info("watching config for changes", "path", *configPath)
		}
	}

	exit := 0
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		exit = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		exit = 1
	}
	slog.Info("goodbye")
	return exit
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Fprintln(os.Stderr, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║          Vaani  startup summary       ║")
	fmt.Fprintln(os.Stderr, "╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM)
	printProvider("STT", cfg.Providers.STT)
	printProvider("TTS", cfg.Providers.TTS)
	printRow("Mode", string(cfg.Server.Mode))
	printRow("Voice", cfg.Persona.VoiceGender)
	printRow("Cache scorer", orDefault(cfg.Cache.Scorer, "ratio"))
	printRow("Turn limit", fmt.Sprint(cfg.Conversation.TurnLimit))
	if cfg.Server.Mode == config.ModeServer {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Fprintln(os.Stderr, "╚═══════════════════════════════════════╝")
}

func printProvider(kind string, entry config.ProviderEntry) {
	value := entry.Name
	if entry.Model != "" {
		value = entry.Name + " / " + entry.Model
	}
	if n := len(entry.Fallbacks); n > 0 {
		value = fmt.Sprintf("%s (+%d)", value, n)
	}
	printRow(kind, value)
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "..."
	}
	fmt.Fprintf(os.Stderr, "║  %-12s    : %-19s ║\n", label, value)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger logs to stderr so the console transcript on stdout stays clean.
// The level is read from lvl on every record, which lets the config watcher
// change it at runtime.
func newLogger(lvl *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func parseLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
