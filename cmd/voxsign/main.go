// Command voxsign is the main entry point for the voxsign speech-to-sign
// translation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/voxsign/voxsign/internal/config"
	"github.com/voxsign/voxsign/internal/gloss"
	"github.com/voxsign/voxsign/internal/health"
	"github.com/voxsign/voxsign/internal/observe"
	"github.com/voxsign/voxsign/internal/resilience"
	"github.com/voxsign/voxsign/internal/server"
	"github.com/voxsign/voxsign/internal/session"
	"github.com/voxsign/voxsign/pkg/provider/pose/postgres"
	"github.com/voxsign/voxsign/pkg/provider/stt"
	"github.com/voxsign/voxsign/pkg/provider/stt/whisper"
	"github.com/voxsign/voxsign/pkg/provider/translate"
	tranyllm "github.com/voxsign/voxsign/pkg/provider/translate/anyllm"
	tropenai "github.com/voxsign/voxsign/pkg/provider/translate/openai"
	"github.com/voxsign/voxsign/pkg/provider/vad"
	"github.com/voxsign/voxsign/pkg/provider/vad/energy"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxsign: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxsign: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxsign starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer providers.poses.Close()

	healthHandler := health.New(
		health.Checker{Name: "recognizer", Check: providers.recognizerReady},
		health.Checker{Name: "poses", Check: providers.poses.Ready},
	)

	// Stage failures trip the breakers; an open breaker surfaces to clients as
	// an ordinary per-utterance error event while the backend recovers.
	recognizer := resilience.NewRecognizer(providers.recognizer, resilience.CircuitBreakerConfig{})
	translator := resilience.NewTranslator(providers.translator, resilience.CircuitBreakerConfig{})

	// ── Session manager ───────────────────────────────────────────────────────
	settings := session.Settings{
		SampleRate:        cfg.Audio.SampleRate,
		FrameMs:           cfg.Audio.FrameMs,
		TrailingSilenceMs: cfg.Audio.TrailingSilenceMs,
		Aggressiveness:    cfg.Audio.Aggressiveness,
		MaxUtteranceMs:    cfg.Audio.MaxUtteranceMs,
		EmitPartials:      cfg.Server.EmitPartials,
	}
	manager, err := session.NewManager(ctx, settings, providers.classifier,
		recognizer, translator, providers.poses,
		session.WithHooks(sessionHooks(ctx, metrics)))
	if err != nil {
		slog.Error("failed to create session manager", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.New(manager, healthHandler, metrics).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var serveErr error
		if tls := cfg.Server.TLS; tls != nil {
			serveErr = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			serveErr = srv.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "listen_addr", cfg.Server.ListenAddr)

	select {
	case err := <-errCh:
		slog.Error("serve error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…", "active_sessions", manager.ActiveCount())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providerSet is everything the pipeline needs, built once at startup and
// shared read-only across sessions.
type providerSet struct {
	classifier vad.Engine
	recognizer stt.Recognizer
	translator translate.Translator
	poses      *postgres.Store

	// recognizerReady probes the unwrapped recognizer backend.
	recognizerReady func(ctx context.Context) error
}

// buildProviders instantiates the classifier, recognizer, translator and pose
// store named in cfg. Any failure here is fatal: the process refuses to start
// rather than serve sessions against missing collaborators.
func buildProviders(ctx context.Context, cfg *config.Config) (*providerSet, error) {
	ps := &providerSet{}

	// ── Classifier ────────────────────────────────────────────────────────────
	switch name := cfg.Providers.Classifier.Name; name {
	case "energy":
		ps.classifier = energy.New()
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", name)
	}
	slog.Info("provider created", "kind", "classifier", "name", cfg.Providers.Classifier.Name)

	// ── Recognizer ────────────────────────────────────────────────────────────
	switch entry := cfg.Providers.Recognizer; entry.Name {
	case "whisper":
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		opts = append(opts, whisper.WithSampleRate(cfg.Audio.SampleRate))
		p, err := whisper.New(entry.BaseURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("create recognizer %q: %w", entry.Name, err)
		}
		ps.recognizer = p
		ps.recognizerReady = p.Ready
	case "whisper-native":
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		opts = append(opts, whisper.WithNativeSampleRate(cfg.Audio.SampleRate))
		p, err := whisper.NewNative(modelPath, opts...)
		if err != nil {
			return nil, fmt.Errorf("create recognizer %q: %w", entry.Name, err)
		}
		ps.recognizer = p
		ps.recognizerReady = p.Ready
	default:
		return nil, fmt.Errorf("unknown recognizer provider %q", entry.Name)
	}
	slog.Info("provider created", "kind", "recognizer", "name", cfg.Providers.Recognizer.Name,
		"model", cfg.Providers.Recognizer.Model)

	// ── Translator ────────────────────────────────────────────────────────────
	switch entry := cfg.Providers.Translator; entry.Name {
	case "openai":
		var opts []tropenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, tropenai.WithBaseURL(entry.BaseURL))
		}
		p, err := tropenai.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("create translator %q: %w", entry.Name, err)
		}
		ps.translator = p
	case "ollama", "llamacpp", "llamafile":
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := tranyllm.New(entry.Name, entry.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("create translator %q: %w", entry.Name, err)
		}
		ps.translator = p
	default:
		return nil, fmt.Errorf("unknown translator provider %q", entry.Name)
	}
	slog.Info("provider created", "kind", "translator", "name", cfg.Providers.Translator.Name,
		"model", cfg.Providers.Translator.Model)

	// ── Pose store ────────────────────────────────────────────────────────────
	store, err := postgres.NewStore(ctx, cfg.Poses.PostgresDSN, postgres.WithMatcher(gloss.New()))
	if err != nil {
		return nil, fmt.Errorf("open pose store: %w", err)
	}
	ps.poses = store
	slog.Info("pose store ready", "known_glosses", len(store.KnownGlosses()))

	return ps, nil
}

// sessionHooks routes session and pipeline activity into the process metrics.
func sessionHooks(ctx context.Context, m *observe.Metrics) session.Hooks {
	return session.Hooks{
		SessionOpened: func() { m.ActiveSessions.Add(ctx, 1) },
		SessionClosed: func() { m.ActiveSessions.Add(ctx, -1) },
		Utterance: func(bytes int) {
			m.Utterances.Add(ctx, 1)
			slog.Debug("utterance detected", "bytes", bytes)
		},
		UtteranceDropped:  func() { m.DroppedUtterances.Add(ctx, 1) },
		ClassifierFailure: func(err error) { m.ClassifierFailures.Add(ctx, 1) },
		Stage: func(stage string, d time.Duration, err error) {
			m.RecordStage(ctx, stage, d, err)
		},
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         voxsign — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Classifier", cfg.Providers.Classifier.Name, "")
	printProvider("Recognizer", cfg.Providers.Recognizer.Name, cfg.Providers.Recognizer.Model)
	printProvider("Translator", cfg.Providers.Translator.Name, cfg.Providers.Translator.Model)
	fmt.Printf("║  Sample rate     : %-19s ║\n", fmt.Sprintf("%d Hz", cfg.Audio.SampleRate))
	fmt.Printf("║  Frame           : %-19s ║\n", fmt.Sprintf("%d ms", cfg.Audio.FrameMs))
	fmt.Printf("║  Silence window  : %-19s ║\n", fmt.Sprintf("%d ms", cfg.Audio.TrailingSilenceMs))
	if cfg.Server.EmitPartials {
		fmt.Printf("║  Partials        : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Partials        : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
