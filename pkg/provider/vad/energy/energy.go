// Package energy provides a dependency-free RMS energy classifier implementing
// [vad.Engine].
//
// Each frame's root-mean-square energy is compared against a threshold derived
// from the configured aggressiveness level, with light exponential smoothing so
// a single noisy frame does not flip the decision. It is not a substitute for a
// model-based VAD in noisy environments, but it is deterministic, fast, and
// needs no external model files, which makes it the default for development
// deployments and the reference engine in tests.
package energy

import (
	"fmt"

	"github.com/voxsign/voxsign/pkg/audio"
	"github.com/voxsign/voxsign/pkg/provider/vad"
)

// Thresholds are in 16-bit PCM RMS units (full scale 32 767). 300 corresponds
// to near-silence on typical microphone input; each aggressiveness step raises
// the bar.
var aggressivenessThresholds = [...]float64{150, 300, 600, 1200}

// smoothing is the weight of the current frame in the exponential moving
// average of RMS energy.
const smoothing = 0.35

// Engine implements [vad.Engine] using RMS energy thresholding. The zero
// value is ready to use; Engine is stateless and safe for concurrent use.
type Engine struct{}

// Compile-time assertion that Engine satisfies vad.Engine.
var _ vad.Engine = (*Engine)(nil)

// New returns a new energy classifier engine.
func New() *Engine { return &Engine{} }

// NewSession creates a classifier session. Returns an error if cfg specifies a
// non-positive sample rate or frame size, or an aggressiveness outside 0–3.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.FrameMs <= 0 {
		return nil, fmt.Errorf("energy: frame duration must be positive, got %d ms", cfg.FrameMs)
	}
	if cfg.Aggressiveness < 0 || cfg.Aggressiveness >= len(aggressivenessThresholds) {
		return nil, fmt.Errorf("energy: aggressiveness must be 0–%d, got %d",
			len(aggressivenessThresholds)-1, cfg.Aggressiveness)
	}
	return &session{
		frameBytes: audio.FrameBytes(cfg.SampleRate, cfg.FrameMs),
		threshold:  aggressivenessThresholds[cfg.Aggressiveness],
	}, nil
}

// session holds the per-stream smoothing state. Not safe for concurrent use;
// it is owned by one intake loop.
type session struct {
	frameBytes int
	threshold  float64

	avg    float64
	primed bool
	closed bool
}

var _ vad.Session = (*session)(nil)

// Classify reports whether frame's smoothed RMS energy exceeds the session
// threshold.
func (s *session) Classify(frame []byte) (bool, error) {
	if s.closed {
		return false, fmt.Errorf("energy: session is closed")
	}
	if len(frame) != s.frameBytes {
		return false, fmt.Errorf("energy: expected %d-byte frame, got %d", s.frameBytes, len(frame))
	}

	rms := audio.RMS(frame)
	if !s.primed {
		s.avg = rms
		s.primed = true
	} else {
		s.avg = smoothing*rms + (1-smoothing)*s.avg
	}
	return s.avg >= s.threshold, nil
}

// Reset clears the smoothing history.
func (s *session) Reset() {
	s.avg = 0
	s.primed = false
}

// Close marks the session closed. Subsequent Classify calls return an error.
func (s *session) Close() error {
	s.closed = true
	return nil
}
