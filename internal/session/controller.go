// Package session owns the per-connection lifecycle: it wires the frame
// chunker, classifier, segmenter and pipeline orchestrator together, handles
// the stop/flush control signal, and decides connection termination.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voxsign/voxsign/internal/pipeline"
	"github.com/voxsign/voxsign/internal/segment"
	"github.com/voxsign/voxsign/pkg/audio"
)

// Controller processes one connection's audio. Ingest and Stop are called
// from the connection's single intake goroutine; the controller is not safe
// for concurrent intake.
type Controller struct {
	id           string
	framer       *audio.Framer
	classifier   *segment.Classifier
	segmenter    *segment.Segmenter
	orchestrator *pipeline.Orchestrator

	onUtterance func(bytes int)
	onClose     func()
	closed      bool
}

// ID returns the session identifier used in logs.
func (c *Controller) ID() string { return c.id }

// Events exposes the orchestrator's ordered outbound event stream. Closed
// after [Controller.Close]; the transport writer must drain it.
func (c *Controller) Events() <-chan pipeline.Event {
	return c.orchestrator.Events()
}

// Ingest feeds one inbound audio payload of any size. Complete frames are
// classified and segmented in arrival order; a completed utterance is handed
// to the orchestrator without blocking intake.
func (c *Controller) Ingest(payload []byte) error {
	for _, frame := range c.framer.Append(payload) {
		isSpeech := c.classifier.Classify(frame)
		utterance, ok := c.segmenter.Push(frame, isSpeech)
		if !ok {
			continue
		}
		// Each utterance is classified independently: clear the oracle's
		// smoothing state so the previous utterance's energy history does
		// not bias the first frames of the next one.
		c.classifier.Reset()
		if c.onUtterance != nil {
			c.onUtterance(len(utterance))
		}
		if err := c.orchestrator.Submit(utterance); err != nil {
			return fmt.Errorf("session %s: submit utterance: %w", c.id, err)
		}
	}
	return nil
}

// Stop handles the explicit stop/flush signal: it waits for any pending run,
// then submits a non-empty remaining buffer as one final run. When Stop
// returns, every result or error event for the flush is already on the event
// stream.
func (c *Controller) Stop(ctx context.Context) error {
	utterance, ok := c.segmenter.Flush()
	if !ok {
		utterance = nil
	} else if c.onUtterance != nil {
		c.onUtterance(len(utterance))
	}
	if err := c.orchestrator.Flush(ctx, utterance); err != nil {
		return fmt.Errorf("session %s: flush: %w", c.id, err)
	}
	return nil
}

// Close tears the session down. Any buffered partial frame is abandoned; an
// in-flight run finishes in the background before the event stream closes.
// Safe to call after Stop or on abrupt disconnect; idempotent.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if pending := c.framer.Pending(); pending > 0 {
		slog.Debug("session: abandoning partial frame", "session_id", c.id, "bytes", pending)
	}
	c.orchestrator.Close()
	err := c.classifier.Close()
	if c.onClose != nil {
		c.onClose()
	}
	if err != nil {
		return fmt.Errorf("session %s: close classifier: %w", c.id, err)
	}
	return nil
}
