package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxsign/voxsign/internal/pipeline"
	"github.com/voxsign/voxsign/internal/segment"
	"github.com/voxsign/voxsign/pkg/audio"
	"github.com/voxsign/voxsign/pkg/provider/pose"
	"github.com/voxsign/voxsign/pkg/provider/stt"
	"github.com/voxsign/voxsign/pkg/provider/translate"
	"github.com/voxsign/voxsign/pkg/provider/vad"
)

// Settings are the fixed per-deployment segmentation knobs. They are not
// renegotiated mid-session.
type Settings struct {
	// SampleRate of the inbound PCM in Hz.
	SampleRate int
	// FrameMs is the classification frame duration in milliseconds.
	FrameMs int
	// TrailingSilenceMs of consecutive non-speech that ends an utterance.
	TrailingSilenceMs int
	// Aggressiveness of the voice-activity classifier (0–3).
	Aggressiveness int
	// MaxUtteranceMs bounds a single utterance during continuous speech.
	// Zero disables the bound.
	MaxUtteranceMs int
	// EmitPartials enables a partial-text event before each final.
	EmitPartials bool
}

// Validate reports every invalid knob.
func (s Settings) Validate() error {
	var errs []error
	if s.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", s.SampleRate))
	}
	if s.FrameMs <= 0 {
		errs = append(errs, fmt.Errorf("frame duration must be positive, got %d ms", s.FrameMs))
	}
	if s.FrameMs > 0 && s.TrailingSilenceMs < s.FrameMs {
		errs = append(errs, fmt.Errorf("trailing silence (%d ms) must be at least one frame (%d ms)",
			s.TrailingSilenceMs, s.FrameMs))
	}
	if s.Aggressiveness < 0 || s.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("aggressiveness must be 0-3, got %d", s.Aggressiveness))
	}
	if s.MaxUtteranceMs < 0 {
		errs = append(errs, fmt.Errorf("max utterance duration must not be negative, got %d ms", s.MaxUtteranceMs))
	}
	if len(errs) > 0 {
		return fmt.Errorf("session settings: %w", errors.Join(errs...))
	}
	return nil
}

// windowCapacity is the number of trailing frame labels that constitute a
// full silence window.
func (s Settings) windowCapacity() int {
	return s.TrailingSilenceMs / s.FrameMs
}

// maxBufferBytes converts MaxUtteranceMs to a byte bound, zero when disabled.
func (s Settings) maxBufferBytes() int {
	if s.MaxUtteranceMs <= 0 {
		return 0
	}
	return s.MaxUtteranceMs / s.FrameMs * audio.FrameBytes(s.SampleRate, s.FrameMs)
}

// Hooks let the transport layer observe session activity without coupling
// this package to the metrics backend. All fields are optional.
type Hooks struct {
	SessionOpened     func()
	SessionClosed     func()
	Utterance         func(bytes int)
	UtteranceDropped  func()
	ClassifierFailure func(err error)
	Stage             func(stage string, d time.Duration, err error)
}

// Manager constructs session controllers around the process-wide providers.
// Providers are loaded once at startup and shared read-only across sessions;
// the manager never re-initializes them per connection.
type Manager struct {
	settings   Settings
	hooks      Hooks
	vadEngine  vad.Engine
	recognizer stt.Recognizer
	translator translate.Translator
	renderer   pose.Renderer

	// runCtx scopes pipeline runs. Disconnects do not cancel in-flight
	// runs, so this is the process context, not a connection's.
	runCtx context.Context

	mu     sync.Mutex
	active map[string]*Controller
}

// ManagerOption is a functional option for [NewManager].
type ManagerOption func(*Manager)

// WithHooks installs observation hooks on every session the manager opens.
func WithHooks(hooks Hooks) ManagerOption {
	return func(m *Manager) { m.hooks = hooks }
}

// NewManager validates settings and creates a manager.
func NewManager(runCtx context.Context, settings Settings, vadEngine vad.Engine, recognizer stt.Recognizer, translator translate.Translator, renderer pose.Renderer, opts ...ManagerOption) (*Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if vadEngine == nil || recognizer == nil || translator == nil || renderer == nil {
		return nil, fmt.Errorf("session manager: all providers must be non-nil")
	}

	m := &Manager{
		settings:   settings,
		vadEngine:  vadEngine,
		recognizer: recognizer,
		translator: translator,
		renderer:   renderer,
		runCtx:     runCtx,
		active:     make(map[string]*Controller),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Open assembles a new session controller. Any failure here is a setup
// error: fatal for the connection being opened, reported once, and no
// segmentation happens.
func (m *Manager) Open() (*Controller, error) {
	vadSession, err := m.vadEngine.NewSession(vad.Config{
		SampleRate:     m.settings.SampleRate,
		FrameMs:        m.settings.FrameMs,
		Aggressiveness: m.settings.Aggressiveness,
	})
	if err != nil {
		return nil, fmt.Errorf("session: open classifier session: %w", err)
	}

	segmenter, err := segment.NewSegmenter(
		m.settings.windowCapacity(),
		audio.FrameBytes(m.settings.SampleRate, m.settings.FrameMs),
		segment.WithMaxBufferBytes(m.settings.maxBufferBytes()),
	)
	if err != nil {
		_ = vadSession.Close()
		return nil, fmt.Errorf("session: %w", err)
	}

	var classifierOpts []segment.ClassifierOption
	if m.hooks.ClassifierFailure != nil {
		classifierOpts = append(classifierOpts, segment.WithFailureHook(m.hooks.ClassifierFailure))
	}

	orchOpts := []pipeline.Option{}
	if m.settings.EmitPartials {
		orchOpts = append(orchOpts, pipeline.WithPartials())
	}
	if m.hooks.Stage != nil {
		orchOpts = append(orchOpts, pipeline.WithStageHook(m.hooks.Stage))
	}
	if m.hooks.UtteranceDropped != nil {
		orchOpts = append(orchOpts, pipeline.WithDropHook(m.hooks.UtteranceDropped))
	}

	id := newID()
	c := &Controller{
		id:           id,
		framer:       audio.NewFramer(m.settings.SampleRate, m.settings.FrameMs),
		classifier:   segment.NewClassifier(vadSession, classifierOpts...),
		segmenter:    segmenter,
		orchestrator: pipeline.New(m.runCtx, m.recognizer, m.translator, m.renderer, orchOpts...),
		onUtterance:  m.hooks.Utterance,
		onClose:      func() { m.remove(id) },
	}

	m.mu.Lock()
	m.active[id] = c
	m.mu.Unlock()
	if m.hooks.SessionOpened != nil {
		m.hooks.SessionOpened()
	}
	slog.Info("session started", "session_id", id,
		"sample_rate", m.settings.SampleRate,
		"frame_ms", m.settings.FrameMs,
		"trailing_silence_ms", m.settings.TrailingSilenceMs)
	return c, nil
}

// ActiveCount returns the number of open sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
	if m.hooks.SessionClosed != nil {
		m.hooks.SessionClosed()
	}
	slog.Info("session stopped", "session_id", id)
}

// newID returns a random 16-hex-character session identifier.
func newID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("session: read random id: %v", err))
	}
	return hex.EncodeToString(b[:])
}
