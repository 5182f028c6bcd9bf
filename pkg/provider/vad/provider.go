// Package vad defines the Engine interface for voice-activity classification
// backends.
//
// A VAD engine wraps a frame-level speech detector (an external oracle such as
// WebRTC VAD, Silero, or the built-in energy classifier) and surfaces it as a
// stateful per-stream session. Each session maintains its own internal state so
// that multiple concurrent audio streams can be classified independently.
//
// Classification is synchronous by design: Classify returns immediately with a
// boolean speech decision, making it suitable for the low-latency intake loop
// that gates utterance segmentation.
//
// Implementations must be safe for concurrent use across different sessions. A
// single Session must not be shared across goroutines unless the implementation
// explicitly documents thread safety for that type.
package vad

// Config holds the parameters for a classifier session. These are fixed per
// deployment and never renegotiated mid-session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to Classify. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameMs is the duration of each audio frame in milliseconds. Most VAD
	// models operate on fixed frame sizes (10, 20, or 30 ms). Classify returns
	// an error if the supplied frame does not match this size.
	FrameMs int

	// Aggressiveness selects how strictly non-speech is filtered, 0 (least
	// aggressive, most frames classified as speech) through 3 (most
	// aggressive). Mirrors the WebRTC VAD mode knob.
	Aggressiveness int
}

// Session represents an active classifier session for a single audio stream.
// It is an interface so that test code can supply scripted implementations
// without a live engine.
type Session interface {
	// Classify analyses a single audio frame and reports whether it contains
	// speech. The frame must be raw 16-bit little-endian mono PCM of exactly
	// the configured frame size. Returns an error if the frame size is wrong
	// or the engine encounters an internal failure; the caller decides the
	// fail-soft policy.
	//
	// Classify is called synchronously from the intake loop; it must not block.
	Classify(frame []byte) (bool, error)

	// Reset clears accumulated detection state (smoothing history) without
	// closing the session. Use when the audio stream is interrupted so stale
	// state cannot affect subsequent frames.
	Reset()

	// Close releases all resources associated with the session. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for classifier sessions, implemented by each VAD
// backend. Implementations must be safe for concurrent use: multiple
// goroutines may call NewSession simultaneously.
type Engine interface {
	// NewSession creates a classifier session with the given configuration,
	// immediately ready to accept frames. Returns an error if the
	// configuration is invalid or resources cannot be allocated.
	NewSession(cfg Config) (Session, error)
}
