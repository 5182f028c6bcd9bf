// Package translate defines the Translator interface for text → sign-gloss
// backends.
//
// A gloss is the token sequence representing the visual-language rendering
// target: upper-case sign names in signing order, with fingerspelled words
// marked by an FS- prefix (e.g., "YESTERDAY FS-SAM STORE GO"). Translators
// convert recognized English text into that notation; the pose renderer then
// resolves each token to animation frames.
//
// Translate must never be called with empty input — the pipeline terminates a
// run early on empty recognition results before the translator is reached.
//
// Implementations must be safe for concurrent use.
package translate

import (
	"context"
	"strings"
)

// Translator converts recognized text into a sign-language gloss string.
type Translator interface {
	// Translate converts text (non-empty) into a gloss string. The returned
	// gloss may be empty when the input has no signable content; that is not
	// an error. Blocks until translation completes or ctx is cancelled.
	Translate(ctx context.Context, text string) (string, error)
}

// CleanInput normalises English text for translation input: lower-cased and
// whitespace-trimmed, mirroring the preprocessing the gloss model was trained
// with. Returns "" for whitespace-only input.
func CleanInput(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// CleanGloss normalises a model-produced gloss string: upper-cased tokens
// separated by single spaces. FS- prefixes keep their canonical form.
func CleanGloss(gloss string) string {
	fields := strings.Fields(strings.ToUpper(gloss))
	return strings.Join(fields, " ")
}
