package audio

import "time"

// Framer slices an incoming byte stream into fixed-duration PCM frames.
//
// Append accepts arbitrary-length byte chunks and returns every complete frame
// extracted in arrival order; any remainder shorter than one frame is retained
// and prepended to the next Append call. Reassembling the returned frames plus
// the final remainder reproduces the input stream exactly — no bytes are ever
// dropped, duplicated, or reordered.
//
// A Framer is owned by a single session's intake path and is not safe for
// concurrent use.
type Framer struct {
	sampleRate int
	frameBytes int

	rest    []byte
	elapsed time.Duration // stream position of the next frame to be emitted
}

// NewFramer creates a Framer producing frames of frameMs milliseconds of
// 16-bit mono PCM at sampleRate Hz.
func NewFramer(sampleRate, frameMs int) *Framer {
	return &Framer{
		sampleRate: sampleRate,
		frameBytes: FrameBytes(sampleRate, frameMs),
	}
}

// FrameSize returns the byte length of one complete frame.
func (f *Framer) FrameSize() int { return f.frameBytes }

// Append buffers p and returns all complete frames now available. The returned
// frames hold copies of the input bytes; p may be reused by the caller. Returns
// nil when the accumulated remainder is still below one frame length.
func (f *Framer) Append(p []byte) []Frame {
	f.rest = append(f.rest, p...)
	if len(f.rest) < f.frameBytes {
		return nil
	}

	n := len(f.rest) / f.frameBytes
	frames := make([]Frame, 0, n)
	for i := range n {
		data := make([]byte, f.frameBytes)
		copy(data, f.rest[i*f.frameBytes:(i+1)*f.frameBytes])
		frames = append(frames, Frame{
			Data:       data,
			SampleRate: f.sampleRate,
			Timestamp:  f.elapsed,
		})
		f.elapsed += frames[len(frames)-1].Duration()
	}

	// Keep the short tail for the next append.
	tail := len(f.rest) % f.frameBytes
	copy(f.rest, f.rest[n*f.frameBytes:])
	f.rest = f.rest[:tail]

	return frames
}

// Pending returns the number of buffered bytes not yet forming a complete
// frame. On disconnect this remainder is abandoned.
func (f *Framer) Pending() int { return len(f.rest) }
