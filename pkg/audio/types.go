// Package audio provides the PCM frame types and byte-level helpers shared by
// the voxsign pipeline: fixed-duration frame extraction from an unbounded byte
// stream, 16-bit PCM math, and WAV container encoding for batch recognizers.
package audio

import "time"

// Frame represents a single fixed-duration slice of audio flowing through the
// pipeline. Frames are the atomic unit of voice-activity classification: every
// frame delivered to a classifier has exactly the byte length implied by the
// session's sample rate and frame duration, never less.
type Frame struct {
	// Data is raw 16-bit signed little-endian mono PCM.
	Data []byte

	// SampleRate in Hz (e.g., 16000).
	SampleRate int

	// Timestamp marks when this frame starts, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the play time of the frame's PCM data at its sample rate.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	samples := len(f.Data) / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// FrameBytes returns the byte length of one frame of frameMs milliseconds of
// 16-bit mono PCM at sampleRate Hz.
func FrameBytes(sampleRate, frameMs int) int {
	return sampleRate * frameMs / 1000 * bytesPerSample
}
