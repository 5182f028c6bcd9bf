// Package mock provides a test double for the translate.Translator interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxsign/voxsign/pkg/provider/translate"
)

// Translator is a scripted implementation of translate.Translator.
type Translator struct {
	mu sync.Mutex

	// Gloss is returned by every Translate call. When empty and GlossFunc is
	// nil, the upper-cased input is returned, which keeps simple tests
	// readable.
	Gloss string

	// GlossFunc, when set, computes the gloss from the input text.
	GlossFunc func(text string) string

	// Err, if non-nil, is returned by every Translate call.
	Err error

	// Calls records the text passed to each Translate call.
	Calls []string
}

var _ translate.Translator = (*Translator)(nil)

// Translate records the call and returns the scripted gloss.
func (t *Translator) Translate(_ context.Context, text string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = append(t.Calls, text)
	if t.Err != nil {
		return "", t.Err
	}
	if t.GlossFunc != nil {
		return t.GlossFunc(text), nil
	}
	if t.Gloss != "" {
		return t.Gloss, nil
	}
	return translate.CleanGloss(text), nil
}

// CallCount returns the number of Translate invocations so far.
func (t *Translator) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}
