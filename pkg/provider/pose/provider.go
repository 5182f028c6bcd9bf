// Package pose defines the Renderer interface for gloss → pose-animation
// backends.
//
// A renderer resolves each token of a gloss string to a sequence of skeletal
// pose frames and concatenates them in signing order. Unresolvable tokens are
// skipped, never fatal: a missing dictionary entry degrades the animation, not
// the session. Fingerspelled tokens (FS-<word>) expand to one lookup per
// letter.
//
// Implementations must be safe for concurrent use.
package pose

import (
	"context"
	"strings"
)

// Landmark is a single skeletal keypoint in normalised image coordinates.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Frame is one animation frame: the full set of tracked landmarks at one
// instant. Frames play back at the dictionary's native capture rate.
type Frame struct {
	Landmarks []Landmark `json:"landmarks"`
}

// Renderer resolves a gloss string to an ordered pose-frame sequence.
type Renderer interface {
	// Render returns the concatenated pose frames for gloss in token order.
	// The result may be empty (nil or zero-length) when no token resolves;
	// that is not an error. Unknown tokens are skipped. Blocks until the
	// lookup completes or ctx is cancelled.
	Render(ctx context.Context, gloss string) ([]Frame, error)
}

// FingerspellPrefix marks a gloss token to be spelled letter by letter,
// e.g. "FS-SAM" renders the signs for S, A, M.
const FingerspellPrefix = "FS-"

// Tokens splits a gloss string into canonical upper-case lookup tokens.
func Tokens(gloss string) []string {
	return strings.Fields(strings.ToUpper(gloss))
}
