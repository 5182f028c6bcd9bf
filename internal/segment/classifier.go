// Package segment turns a classified frame stream into discrete utterances.
//
// It contains the two stages between the frame chunker and the pipeline:
// [Classifier], which wraps a voice-activity session and fails soft on oracle
// errors, and [Segmenter], the Idle/Triggered state machine that accumulates
// speech into an utterance buffer and declares a boundary after a full
// trailing-silence window.
package segment

import (
	"log/slog"

	"github.com/voxsign/voxsign/pkg/audio"
	"github.com/voxsign/voxsign/pkg/provider/vad"
)

// Classifier adapts a [vad.Session] to the segmenter's needs. The external
// oracle occasionally rejects malformed or edge windows; a per-frame failure
// must never abort the session, so Classify maps any oracle error to
// non-speech and reports it through the optional failure hook.
type Classifier struct {
	session   vad.Session
	onFailure func(err error)
}

// ClassifierOption is a functional option for [NewClassifier].
type ClassifierOption func(*Classifier)

// WithFailureHook registers fn to be called on every oracle failure, after
// the diagnostic is logged. Used to drive the classifier-failure counter.
func WithFailureHook(fn func(err error)) ClassifierOption {
	return func(c *Classifier) { c.onFailure = fn }
}

// NewClassifier wraps session.
func NewClassifier(session vad.Session, opts ...ClassifierOption) *Classifier {
	c := &Classifier{session: session}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify labels one frame as speech or non-speech. Oracle failures yield
// non-speech.
func (c *Classifier) Classify(frame audio.Frame) bool {
	isSpeech, err := c.session.Classify(frame.Data)
	if err != nil {
		slog.Warn("segment: classifier rejected frame, treating as non-speech",
			"timestamp", frame.Timestamp, "err", err)
		if c.onFailure != nil {
			c.onFailure(err)
		}
		return false
	}
	return isSpeech
}

// Reset clears the oracle's internal state between utterance streams.
func (c *Classifier) Reset() {
	c.session.Reset()
}

// Close releases the oracle session.
func (c *Classifier) Close() error {
	return c.session.Close()
}
