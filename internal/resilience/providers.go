package resilience

import (
	"context"

	"github.com/voxsign/voxsign/pkg/provider/stt"
	"github.com/voxsign/voxsign/pkg/provider/translate"
)

// Recognizer wraps an [stt.Recognizer] with a circuit breaker. When the
// breaker is open, Recognize returns [ErrCircuitOpen] immediately without
// touching the backend.
type Recognizer struct {
	inner   stt.Recognizer
	breaker *CircuitBreaker
}

var _ stt.Recognizer = (*Recognizer)(nil)

// NewRecognizer wraps inner with a breaker built from cfg. An empty cfg.Name
// defaults to "recognizer".
func NewRecognizer(inner stt.Recognizer, cfg CircuitBreakerConfig) *Recognizer {
	if cfg.Name == "" {
		cfg.Name = "recognizer"
	}
	return &Recognizer{inner: inner, breaker: NewCircuitBreaker(cfg)}
}

// Recognize implements stt.Recognizer under the breaker.
func (r *Recognizer) Recognize(ctx context.Context, pcm []byte) (stt.Transcript, error) {
	var transcript stt.Transcript
	err := r.breaker.Execute(func() error {
		var innerErr error
		transcript, innerErr = r.inner.Recognize(ctx, pcm)
		return innerErr
	})
	if err != nil {
		return stt.Transcript{}, err
	}
	return transcript, nil
}

// Breaker exposes the underlying breaker for state inspection.
func (r *Recognizer) Breaker() *CircuitBreaker { return r.breaker }

// Translator wraps a [translate.Translator] with a circuit breaker.
type Translator struct {
	inner   translate.Translator
	breaker *CircuitBreaker
}

var _ translate.Translator = (*Translator)(nil)

// NewTranslator wraps inner with a breaker built from cfg. An empty cfg.Name
// defaults to "translator".
func NewTranslator(inner translate.Translator, cfg CircuitBreakerConfig) *Translator {
	if cfg.Name == "" {
		cfg.Name = "translator"
	}
	return &Translator{inner: inner, breaker: NewCircuitBreaker(cfg)}
}

// Translate implements translate.Translator under the breaker.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	var gloss string
	err := t.breaker.Execute(func() error {
		var innerErr error
		gloss, innerErr = t.inner.Translate(ctx, text)
		return innerErr
	})
	if err != nil {
		return "", err
	}
	return gloss, nil
}

// Breaker exposes the underlying breaker for state inspection.
func (t *Translator) Breaker() *CircuitBreaker { return t.breaker }
