package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/voxsign/voxsign/pkg/audio"
)

func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := audio.RMS(nil); got != 0 {
		t.Errorf("empty buffer RMS: want 0, got %f", got)
	}
	if got := audio.RMS(pcm16(0, 0, 0, 0)); got != 0 {
		t.Errorf("silence RMS: want 0, got %f", got)
	}
	if got := audio.RMS(pcm16(1000, -1000, 1000, -1000)); got != 1000 {
		t.Errorf("constant-magnitude RMS: want 1000, got %f", got)
	}
}

func TestEncodeWAV_Header(t *testing.T) {
	t.Parallel()

	pcm := pcm16(1, 2, 3, 4)
	wav := audio.EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length: want %d, got %d", 44+len(pcm), len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate: want 16000, got %d", rate)
	}
	if ch := binary.LittleEndian.Uint16(wav[22:24]); ch != 1 {
		t.Errorf("channels: want 1, got %d", ch)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); int(size) != len(pcm) {
		t.Errorf("data size: want %d, got %d", len(pcm), size)
	}
}

func TestFrameBytes(t *testing.T) {
	t.Parallel()

	// 30 ms @ 16 kHz mono 16-bit = 480 samples = 960 bytes.
	if got := audio.FrameBytes(16000, 30); got != 960 {
		t.Errorf("FrameBytes(16000, 30): want 960, got %d", got)
	}
}
