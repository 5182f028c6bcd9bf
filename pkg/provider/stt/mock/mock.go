// Package mock provides a test double for the stt.Recognizer interface.
//
// Pre-populate Texts with the transcripts to return in order; inspect Calls to
// verify which utterance bytes were submitted.
package mock

import (
	"context"
	"sync"

	"github.com/voxsign/voxsign/pkg/provider/stt"
)

// Recognizer is a scripted implementation of stt.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// Texts are returned one per Recognize call, in order. When exhausted,
	// Recognize returns an empty transcript.
	Texts []string

	// Err, if non-nil, is returned by every Recognize call.
	Err error

	// ErrAfter injects Err only from the given 0-based call index onward,
	// letting tests script "first run succeeds, second fails". Ignored when
	// Err is nil.
	ErrAfter int

	// Delay, when set, makes Recognize block until the channel is closed or
	// the context is cancelled, so tests can hold a pipeline run open.
	Delay chan struct{}

	// Calls records a copy of the PCM passed to each Recognize call.
	Calls [][]byte
}

var _ stt.Recognizer = (*Recognizer)(nil)

// Recognize records the call and returns the next scripted transcript.
func (r *Recognizer) Recognize(ctx context.Context, pcm []byte) (stt.Transcript, error) {
	r.mu.Lock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	r.Calls = append(r.Calls, cp)
	idx := len(r.Calls) - 1
	delay := r.Delay
	r.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return stt.Transcript{}, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil && idx >= r.ErrAfter {
		return stt.Transcript{}, r.Err
	}
	if idx < len(r.Texts) {
		return stt.Transcript{Text: r.Texts[idx]}, nil
	}
	return stt.Transcript{}, nil
}

// CallCount returns the number of Recognize invocations so far.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}
