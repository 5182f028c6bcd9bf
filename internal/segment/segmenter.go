package segment

import (
	"fmt"

	"github.com/voxsign/voxsign/pkg/audio"
)

// segmenter states.
type state int

const (
	stateIdle state = iota
	stateTriggered
)

// Segmenter is the per-session utterance boundary detector.
//
// It is a two-state machine. In Idle it discards non-speech frames; the first
// speech-labelled frame moves it to Triggered. While Triggered every frame's
// bytes are appended to the utterance buffer regardless of its own label
// (this keeps trailing consonants and short intra-utterance pauses), and the
// label is pushed into a fixed-capacity trailing window of the most recent
// windowCapacity labels. When that window is full and holds only non-speech
// labels, a boundary fires: the buffer minus the trailing-silence bytes is
// handed off as the utterance and the machine resets to Idle with cleared
// buffer and window, so a single silence run can never produce two
// boundaries.
//
// The segmenter is not safe for concurrent use; a session's intake path is
// its sole owner.
type Segmenter struct {
	windowCapacity int
	frameBytes     int
	maxBufferBytes int // 0 disables the force flush

	st     state
	window []bool
	buf    []byte
}

// SegmenterOption is a functional option for [NewSegmenter].
type SegmenterOption func(*Segmenter)

// WithMaxBufferBytes bounds the utterance buffer during continuous speech.
// When the buffer reaches n bytes a boundary is forced with the full buffer
// as the utterance. Zero disables the bound.
func WithMaxBufferBytes(n int) SegmenterOption {
	return func(s *Segmenter) { s.maxBufferBytes = n }
}

// NewSegmenter creates a segmenter whose trailing window holds
// windowCapacity frame labels of frameBytes-sized frames.
func NewSegmenter(windowCapacity, frameBytes int, opts ...SegmenterOption) (*Segmenter, error) {
	if windowCapacity <= 0 {
		return nil, fmt.Errorf("segment: windowCapacity must be positive, got %d", windowCapacity)
	}
	if frameBytes <= 0 {
		return nil, fmt.Errorf("segment: frameBytes must be positive, got %d", frameBytes)
	}
	s := &Segmenter{
		windowCapacity: windowCapacity,
		frameBytes:     frameBytes,
		window:         make([]bool, 0, windowCapacity),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Push feeds one classified frame. When a boundary fires it returns a copy of
// the utterance bytes and true; the returned slice is never aliased by later
// pushes. A boundary whose trimmed utterance is empty returns (nil, false).
func (s *Segmenter) Push(frame audio.Frame, isSpeech bool) ([]byte, bool) {
	if s.st == stateIdle {
		if !isSpeech {
			return nil, false
		}
		s.st = stateTriggered
	}

	s.buf = append(s.buf, frame.Data...)
	s.pushLabel(isSpeech)

	if s.maxBufferBytes > 0 && len(s.buf) >= s.maxBufferBytes {
		// Continuous speech exceeded the buffer bound; submit everything.
		utterance := s.takeBuffer(len(s.buf))
		s.reset()
		return utterance, len(utterance) > 0
	}

	if len(s.window) == s.windowCapacity && s.allNonSpeech() {
		// The last windowCapacity frames are all silence; they delimit the
		// utterance rather than belong to it.
		speechLen := len(s.buf) - s.windowCapacity*s.frameBytes
		utterance := s.takeBuffer(speechLen)
		s.reset()
		return utterance, len(utterance) > 0
	}

	return nil, false
}

// Flush returns a copy of the accumulated buffer, bypassing the
// trailing-silence requirement, and resets the segmenter. Returns (nil,
// false) when nothing has accumulated.
func (s *Segmenter) Flush() ([]byte, bool) {
	utterance := s.takeBuffer(len(s.buf))
	s.reset()
	return utterance, len(utterance) > 0
}

// Buffered returns the number of bytes currently accumulated.
func (s *Segmenter) Buffered() int {
	return len(s.buf)
}

// Triggered reports whether the segmenter is accumulating an utterance.
func (s *Segmenter) Triggered() bool {
	return s.st == stateTriggered
}

// takeBuffer copies out the first n buffer bytes. n is clamped to [0,
// len(buf)].
func (s *Segmenter) takeBuffer(n int) []byte {
	if n <= 0 {
		return nil
	}
	if n > len(s.buf) {
		n = len(s.buf)
	}
	out := make([]byte, n)
	copy(out, s.buf[:n])
	return out
}

// reset returns the machine to Idle with an empty buffer and window.
func (s *Segmenter) reset() {
	s.st = stateIdle
	s.window = s.window[:0]
	s.buf = s.buf[:0]
}

// pushLabel appends a label to the trailing window, evicting the oldest past
// capacity.
func (s *Segmenter) pushLabel(isSpeech bool) {
	if len(s.window) == s.windowCapacity {
		copy(s.window, s.window[1:])
		s.window = s.window[:s.windowCapacity-1]
	}
	s.window = append(s.window, isSpeech)
}

// allNonSpeech reports whether every label in the window is non-speech.
func (s *Segmenter) allNonSpeech() bool {
	for _, isSpeech := range s.window {
		if isSpeech {
			return false
		}
	}
	return true
}
