package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimiro1/banner"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/petems/voiceflow/internal/app"
	"github.com/petems/voiceflow/internal/audio"
	"github.com/petems/voiceflow/internal/command"
	"github.com/petems/voiceflow/internal/config"
	"github.com/petems/voiceflow/internal/hotkey"
	"github.com/petems/voiceflow/internal/inject"
	"github.com/petems/voiceflow/internal/logging"
	"github.com/petems/voiceflow/internal/metrics"
	"github.com/petems/voiceflow/internal/permissions"
	"github.com/petems/voiceflow/internal/server"
	"github.com/petems/voiceflow/internal/stream"
	"github.com/petems/voiceflow/internal/tray"
	"github.com/petems/voiceflow/internal/whisper"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	flags := pflag.NewFlagSet("voiceflow", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to the config file")
	flags.String("mode", "", "tray or stdio")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("device", "", "Input device name (default: system default)")
	flags.String("engine", "", "whisper-cpp or openai")
	flags.String("model", "", "Whisper model name")
	flags.String("listen", "", "HTTP server listen address")
	flags.Bool("serve", false, "Enable the HTTP server")
	flags.String("hotkey", "", "Global hotkey, e.g. Alt+Space (tray mode)")
	listDevices := flags.Bool("list-devices", false, "Print input devices and exit")
	showVersion := flags.Bool("version", false, "Print version and exit")
	quiet := flags.BoolP("quiet", "q", false, "Do not print the startup banner")
	flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("voiceflow %s (%s)\n", Version, Commit)
		return
	}

	// .env is optional; real environment variables win
	envErr := godotenv.Load()

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logging.NewWithLevel(cfg.LogLevel)
	if envErr != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	if !*quiet {
		printBanner()
	}

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsureMicrophone(); err != nil {
		log.Fatal().Err(err).Msg("Microphone permission not granted")
	}
	if cfg.Inject.Paste {
		if err := permissions.EnsureAccessibility(); err != nil {
			log.Warn().Err(err).Msg("Paste disabled, transcripts will be copied to the clipboard instead")
			cfg.Inject.Paste = false
		}
	}

	capture, err := audio.New(cfg.Audio, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}
	defer capture.Close()

	if *listDevices {
		printDevices(capture)
		return
	}

	transcriber, err := whisper.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize transcription engine")
	}
	defer transcriber.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	events := stream.NewDispatcher()
	application, err := app.New(app.Config{
		Capture:     capture,
		Transcriber: transcriber,
		Config:      cfg,
		Logger:      log,
		Metrics:     m,
		Events:      events,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pipeline")
	}

	injector := inject.New(cfg.Inject.PreferPaste)
	events.AddSink(inject.NewCollector(application, inject.SystemClipboard(), injector, log))

	var srv *server.HTTPServer
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server, application, m, reg, log)
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
		events.AddSink(srv)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("mode", cfg.Mode).
		Str("engine", cfg.Whisper.Engine).
		Str("model", cfg.Whisper.Model).
		Msg("VoiceFlow starting...")

	switch cfg.Mode {
	case config.ModeStdio:
		out := command.NewWriter(os.Stdout, log)
		events.AddSink(out)
		runner := command.NewRunner(application, out, log)

		go func() {
			if err := runner.Run(ctx, os.Stdin); err != nil {
				log.Error().Err(err).Msg("Command loop ended")
			}
			stop()
		}()
		<-ctx.Done()

	default:
		// Tray UI must run on the main thread
		ui := tray.New(application, Version, log)
		events.AddSink(ui)

		closeHotkey := func() {}
		if cfg.Hotkey.Enabled {
			accel := cfg.PlatformHotkey()
			if flags.Changed("hotkey") {
				accel = cfg.Hotkey.Accel
			}
			closeHotkey = bindHotkey(application, accel, cfg.Hotkey.Mode, log)
		}
		go func() {
			<-ctx.Done()
			ui.Quit()
		}()
		ui.Run(stop)
		// No presses may reach the app once shutdown begins
		closeHotkey()
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	events.Close()
	if srv != nil {
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}
}

// bindHotkey registers the global hotkey. Failure leaves the menu as the
// only way to start dictation.
func bindHotkey(rec hotkey.Recorder, accel, mode string, log zerolog.Logger) func() {
	mgr, err := hotkey.New()
	if errors.Is(err, hotkey.ErrUnsupported) {
		log.Warn().Msg("Global hotkeys not supported in this build, use the tray menu")
		return func() {}
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize hotkeys")
		return func() {}
	}

	toggle := hotkey.NewToggle(rec, mode, log)
	if err := hotkey.Bind(mgr, accel, toggle); err != nil {
		log.Warn().Err(err).Str("hotkey", accel).Msg("Failed to register hotkey")
		mgr.Close()
		toggle.Close()
		return func() {}
	}
	log.Info().Str("hotkey", accel).Str("mode", mode).Msg("Hotkey registered")

	return func() {
		mgr.Close()
		toggle.Close()
	}
}

// printBanner goes to stderr; stdout carries the command protocol
func printBanner() {
	tpl := "{{ .Title \"VoiceFlow\" \"\" 0 }}\nVersion: " + Version + " (" + Commit + ")\n"
	banner.Init(os.Stderr, true, isatty.IsTerminal(os.Stderr.Fd()), bytes.NewBufferString(tpl))
}

func printDevices(capture audio.Capture) {
	devices, err := capture.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list devices: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, d := range devices {
		enc.Encode(map[string]any{"id": d.ID, "name": d.Name, "default": d.Default})
	}
}
