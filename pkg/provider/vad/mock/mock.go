// Package mock provides test doubles for the vad package interfaces.
//
// Session classifies frames according to a pre-scripted label sequence, which
// lets segmentation tests drive exact speech/silence patterns without any
// signal processing. When the script is exhausted the session keeps returning
// the final label.
package mock

import (
	"sync"

	"github.com/voxsign/voxsign/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is returned by NewSession. If nil, NewSession returns a new
	// empty-script Session (which classifies everything as non-speech).
	Session vad.Session

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records the Config of every NewSession call.
	NewSessionCalls []vad.Config
}

var _ vad.Engine = (*Engine)(nil)

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Session is a scripted implementation of vad.Session.
type Session struct {
	mu sync.Mutex

	// Labels is the scripted classification sequence consumed one entry per
	// Classify call. Once exhausted, the last entry is repeated (false when
	// Labels is empty).
	Labels []bool

	// Errs maps Classify call indices (0-based) to errors, letting tests
	// inject per-frame oracle failures.
	Errs map[int]error

	// Classified records every frame passed to Classify (copied).
	Classified [][]byte

	// ResetCalls counts Reset invocations.
	ResetCalls int

	// Closed reports whether Close has been called.
	Closed bool

	calls int
}

var _ vad.Session = (*Session)(nil)

// Classify consumes the next scripted label.
func (s *Session) Classify(frame []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.Classified = append(s.Classified, cp)

	idx := s.calls
	s.calls++

	if err, ok := s.Errs[idx]; ok {
		return false, err
	}
	if len(s.Labels) == 0 {
		return false, nil
	}
	if idx >= len(s.Labels) {
		return s.Labels[len(s.Labels)-1], nil
	}
	return s.Labels[idx], nil
}

// Reset increments ResetCalls.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCalls++
}

// Close marks the session closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}
