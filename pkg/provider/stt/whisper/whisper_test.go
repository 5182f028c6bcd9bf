package whisper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_RequiresServerURL(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("New(\"\"): want error, got nil")
	}
}

func TestRecognize_SubmitsWAVAndParsesText(t *testing.T) {
	t.Parallel()

	var gotContentType string
	var gotFileLen int
	var gotLanguage string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path: want /inference, got %s", r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		data, _ := io.ReadAll(f)
		gotFileLen = len(data)

		json.NewEncoder(w).Encode(map[string]string{"text": "  hello world "})
	}))
	t.Cleanup(srv.Close)

	p, err := New(srv.URL, WithLanguage("en"), WithSampleRate(16000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pcm := make([]byte, 16000*2) // 1 s of mono 16-bit @ 16 kHz
	tr, err := p.Recognize(context.Background(), pcm)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	if tr.Text != "hello world" {
		t.Errorf("text: want %q, got %q", "hello world", tr.Text)
	}
	if tr.AudioDuration != time.Second {
		t.Errorf("audio duration: want 1s, got %v", tr.AudioDuration)
	}
	if gotLanguage != "en" {
		t.Errorf("language field: want en, got %q", gotLanguage)
	}
	if gotFileLen != 44+len(pcm) {
		t.Errorf("uploaded wav size: want %d, got %d", 44+len(pcm), gotFileLen)
	}
	if gotContentType == "" {
		t.Error("missing multipart content type")
	}
}

func TestRecognize_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model busy", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Recognize(context.Background(), make([]byte, 320)); err == nil {
		t.Error("want error on HTTP 503, got nil")
	}
}

func TestRecognize_EmptyText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": ""})
	}))
	t.Cleanup(srv.Close)

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := p.Recognize(context.Background(), make([]byte, 320))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if tr.Text != "" {
		t.Errorf("text: want empty, got %q", tr.Text)
	}
}

func TestPCMToFloat32(t *testing.T) {
	t.Parallel()

	// -32768 → -1.0, 0 → 0.0, 16384 → 0.5
	pcm := []byte{0x00, 0x80, 0x00, 0x00, 0x00, 0x40}
	samples := pcmToFloat32(pcm)
	want := []float32{-1.0, 0.0, 0.5}
	if len(samples) != len(want) {
		t.Fatalf("samples: want %d, got %d", len(want), len(samples))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d: want %f, got %f", i, want[i], samples[i])
		}
	}
}
