package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	sttmock "github.com/voxsign/voxsign/pkg/provider/stt/mock"
	trmock "github.com/voxsign/voxsign/pkg/provider/translate/mock"
)

func TestRecognizerPassesThrough(t *testing.T) {
	t.Parallel()

	inner := &sttmock.Recognizer{Texts: []string{"hello"}}
	r := NewRecognizer(inner, CircuitBreakerConfig{})

	transcript, err := r.Recognize(context.Background(), []byte{1, 2})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if transcript.Text != "hello" {
		t.Errorf("text = %q, want %q", transcript.Text, "hello")
	}
	if inner.CallCount() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.CallCount())
	}
}

func TestRecognizerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	inner := &sttmock.Recognizer{Err: errors.New("backend down")}
	r := NewRecognizer(inner, CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		if _, err := r.Recognize(context.Background(), []byte{1}); err == nil {
			t.Fatal("expected backend error")
		}
	}
	if r.Breaker().State() != StateOpen {
		t.Fatalf("breaker state = %v, want open", r.Breaker().State())
	}

	// The open breaker rejects without calling the backend.
	_, err := r.Recognize(context.Background(), []byte{1})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if inner.CallCount() != 2 {
		t.Errorf("inner calls = %d, want 2 (open breaker must not call through)", inner.CallCount())
	}
}

func TestTranslatorPassesThrough(t *testing.T) {
	t.Parallel()

	inner := &trmock.Translator{Gloss: "HELLO"}
	tr := NewTranslator(inner, CircuitBreakerConfig{})

	gloss, err := tr.Translate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if gloss != "HELLO" {
		t.Errorf("gloss = %q, want HELLO", gloss)
	}
}

func TestTranslatorOpenBreakerRejects(t *testing.T) {
	t.Parallel()

	inner := &trmock.Translator{Err: errors.New("model down")}
	tr := NewTranslator(inner, CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})

	if _, err := tr.Translate(context.Background(), "hi"); err == nil {
		t.Fatal("expected backend error")
	}
	if _, err := tr.Translate(context.Background(), "hi"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if inner.CallCount() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.CallCount())
	}
}
