// Package mock provides a test double for the pose.Renderer interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxsign/voxsign/pkg/provider/pose"
)

// Renderer is a scripted implementation of pose.Renderer.
type Renderer struct {
	mu sync.Mutex

	// Frames is returned by every Render call. When nil and FramesFunc is
	// nil, one synthetic frame per gloss token is returned.
	Frames []pose.Frame

	// FramesFunc, when set, computes the frames from the gloss.
	FramesFunc func(gloss string) []pose.Frame

	// Err, if non-nil, is returned by every Render call.
	Err error

	// Calls records the gloss passed to each Render call.
	Calls []string
}

var _ pose.Renderer = (*Renderer)(nil)

// Render records the call and returns the scripted frames.
func (r *Renderer) Render(_ context.Context, glossText string) ([]pose.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, glossText)
	if r.Err != nil {
		return nil, r.Err
	}
	if r.FramesFunc != nil {
		return r.FramesFunc(glossText), nil
	}
	if r.Frames != nil {
		return r.Frames, nil
	}
	out := make([]pose.Frame, 0, len(pose.Tokens(glossText)))
	for range pose.Tokens(glossText) {
		out = append(out, pose.Frame{Landmarks: []pose.Landmark{{X: 0.5, Y: 0.5, Z: 0}}})
	}
	return out, nil
}

// CallCount returns the number of Render invocations so far.
func (r *Renderer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}
