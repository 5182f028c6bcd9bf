// Package stt defines the Recognizer interface for speech-to-text backends.
//
// Recognition in voxsign is batch-shaped: the segmentation engine hands a
// recognizer one complete utterance of PCM audio and receives the transcript
// for exactly that audio. Utterance boundaries are decided upstream by the
// segmenter, so recognizers never see a continuous stream and carry no
// cross-utterance state beyond what their underlying model does internally.
//
// Recognize may be slow (hundreds of milliseconds to seconds); callers run it
// from a background pipeline goroutine, never from the audio intake loop.
// Failures are surfaced as error values, not panics.
//
// Implementations must be safe for concurrent use: multiple sessions may
// recognize utterances simultaneously.
package stt

import (
	"context"
	"time"
)

// Transcript is the result of recognizing one utterance.
type Transcript struct {
	// Text is the transcribed speech content. Empty when the recognizer found
	// no words in the utterance.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// backend does not report confidence.
	Confidence float64

	// AudioDuration is the play time of the recognized utterance audio.
	AudioDuration time.Duration
}

// Recognizer transcribes one utterance of PCM audio.
type Recognizer interface {
	// Recognize transcribes pcm, which must be 16-bit signed little-endian
	// mono PCM at the sample rate the recognizer was configured with. The
	// returned transcript text may be empty; that is not an error.
	//
	// The call blocks until transcription completes or ctx is cancelled.
	Recognize(ctx context.Context, pcm []byte) (Transcript, error)
}
