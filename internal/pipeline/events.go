// Package pipeline runs the recognize → translate → render enrichment
// sequence for completed utterances under a per-session single-flight
// constraint, and emits ordered result events.
package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/voxsign/voxsign/pkg/provider/pose"
)

// Kind discriminates the outbound event payloads.
type Kind int

const (
	// KindPartial carries incremental recognized text ahead of the final.
	KindPartial Kind = iota
	// KindFinal carries the recognized text for a completed utterance.
	KindFinal
	// KindPoses carries the rendered pose-frame sequence. Always emitted
	// after a final, even when empty, so the client can clear pending
	// rendering state.
	KindPoses
	// KindError carries a diagnostic message for a failed run.
	KindError
)

// String returns the JSON key the kind marshals under.
func (k Kind) String() string {
	switch k {
	case KindPartial:
		return "partial"
	case KindFinal:
		return "final"
	case KindPoses:
		return "poses"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is one outbound message toward the client. Seq increases
// monotonically per session in enqueue order; the transport writer preserves
// it.
type Event struct {
	Seq   uint64
	Kind  Kind
	Text  string       // partial, final, error
	Poses []pose.Frame // poses
}

// MarshalJSON renders the event as a single-key object, e.g.
// {"final": "hello"} or {"poses": [...]}.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindPartial, KindFinal, KindError:
		return json.Marshal(map[string]string{e.Kind.String(): e.Text})
	case KindPoses:
		poses := e.Poses
		if poses == nil {
			poses = []pose.Frame{}
		}
		return json.Marshal(map[string][]pose.Frame{"poses": poses})
	default:
		return nil, fmt.Errorf("pipeline: cannot marshal event kind %d", int(e.Kind))
	}
}
