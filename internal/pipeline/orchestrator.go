package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/voxsign/voxsign/pkg/provider/pose"
	"github.com/voxsign/voxsign/pkg/provider/stt"
	"github.com/voxsign/voxsign/pkg/provider/translate"
)

// Stage names passed to the stage hook.
const (
	StageRecognize = "recognize"
	StageTranslate = "translate"
	StageRender    = "render"
)

// Orchestrator drives the enrichment sequence for one session's utterances.
//
// At most one run is in flight at any instant: the single-flight gate is a
// weighted semaphore of capacity 1. An utterance boundary arriving while a
// run is pending is queued at depth one; a further boundary while the slot is
// full replaces the queued utterance and counts a drop. The gate is held
// continuously from the first run through the drained queue, so queued
// utterances execute in completion order and their events can never
// interleave with a newer submission's.
//
// The gate is released only after the run's last event has been placed on the
// event channel, which makes event order toward the client equal to utterance
// completion order.
type Orchestrator struct {
	recognizer stt.Recognizer
	translator translate.Translator
	renderer   pose.Renderer

	emitPartials bool
	stageHook    func(stage string, d time.Duration, err error)
	dropHook     func()

	ctx    context.Context
	gate   *semaphore.Weighted
	events chan Event
	wg     sync.WaitGroup

	mu     sync.Mutex
	queued []byte
	seq    uint64
	closed bool
}

// Option is a functional option for [New].
type Option func(*Orchestrator)

// WithPartials enables a partial-text event before each final. Useful with
// recognizers fast enough that the partial still precedes the rendered poses
// by a perceptible margin.
func WithPartials() Option {
	return func(o *Orchestrator) { o.emitPartials = true }
}

// WithStageHook registers fn to observe every stage execution. Drives the
// per-stage latency histograms.
func WithStageHook(fn func(stage string, d time.Duration, err error)) Option {
	return func(o *Orchestrator) { o.stageHook = fn }
}

// WithDropHook registers fn to be called whenever a queued utterance is
// replaced by a newer one.
func WithDropHook(fn func()) Option {
	return func(o *Orchestrator) { o.dropHook = fn }
}

// New creates an orchestrator for one session. Runs execute under ctx; per
// the session lifecycle a disconnect does not cancel an in-flight run, so
// callers pass a context scoped to the process, not the connection.
func New(ctx context.Context, recognizer stt.Recognizer, translator translate.Translator, renderer pose.Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		recognizer: recognizer,
		translator: translator,
		renderer:   renderer,
		ctx:        ctx,
		gate:       semaphore.NewWeighted(1),
		events:     make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Events returns the ordered outbound event stream. The channel is closed by
// [Orchestrator.Close] after all runs have finished; consumers must drain it
// to completion.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Submit hands a completed utterance to the pipeline. It never blocks beyond
// the queue bookkeeping: when the gate is free the run starts in the
// background, otherwise the utterance is queued at depth one, replacing (and
// counting) any utterance already waiting. utterance must be non-empty and
// must not be mutated by the caller afterwards.
func (o *Orchestrator) Submit(utterance []byte) error {
	if len(utterance) == 0 {
		return fmt.Errorf("pipeline: submit: empty utterance")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("pipeline: submit: orchestrator closed")
	}

	if o.gate.TryAcquire(1) {
		o.wg.Add(1)
		go o.runLoop(utterance)
		return nil
	}

	if o.queued != nil {
		slog.Warn("pipeline: utterance queue full, replacing queued utterance",
			"dropped_bytes", len(o.queued), "queued_bytes", len(utterance))
		if o.dropHook != nil {
			o.dropHook()
		}
	}
	o.queued = utterance
	return nil
}

// Flush waits for any pending run (and its queued successor) to finish, then,
// when utterance is non-empty, executes it synchronously as one final run.
// The caller always gets either result events or an error event on the event
// stream before Flush returns.
func (o *Orchestrator) Flush(ctx context.Context, utterance []byte) error {
	if err := o.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("pipeline: flush: wait for pending run: %w", err)
	}
	defer o.gate.Release(1)

	if len(utterance) == 0 {
		return nil
	}
	o.execute(utterance)
	return nil
}

// Close marks the orchestrator closed, waits for in-flight runs, and closes
// the event channel.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.wg.Wait()
	close(o.events)
}

// runLoop executes a run and then drains the depth-one queue, holding the
// gate across the whole sequence. Runs in its own goroutine.
func (o *Orchestrator) runLoop(utterance []byte) {
	defer o.wg.Done()
	for {
		o.execute(utterance)

		o.mu.Lock()
		next := o.queued
		o.queued = nil
		if next == nil {
			// Release inside the lock so a concurrent Submit either wins the
			// gate or sees it held, never queues into a dead slot.
			o.gate.Release(1)
			o.mu.Unlock()
			return
		}
		o.mu.Unlock()
		utterance = next
	}
}

// execute runs the three stages sequentially for one utterance. Stage
// failures end the run with an error event; the session continues.
func (o *Orchestrator) execute(utterance []byte) {
	transcript, err := o.timedRecognize(utterance)
	if err != nil {
		slog.Warn("pipeline: recognize failed", "bytes", len(utterance), "err", err)
		o.emit(Event{Kind: KindError, Text: "recognition failed"})
		return
	}
	if transcript.Text == "" {
		// Nothing recognizable; no downstream stage runs and no events fire.
		return
	}

	if o.emitPartials {
		o.emit(Event{Kind: KindPartial, Text: transcript.Text})
	}
	o.emit(Event{Kind: KindFinal, Text: transcript.Text})

	gloss, err := o.timedTranslate(transcript.Text)
	if err != nil {
		slog.Warn("pipeline: translate failed", "text", transcript.Text, "err", err)
		o.emit(Event{Kind: KindError, Text: "translation failed"})
		return
	}

	frames, err := o.timedRender(gloss)
	if err != nil {
		slog.Warn("pipeline: render failed", "gloss", gloss, "err", err)
		o.emit(Event{Kind: KindError, Text: "rendering failed"})
		return
	}
	o.emit(Event{Kind: KindPoses, Poses: frames})
}

func (o *Orchestrator) timedRecognize(utterance []byte) (stt.Transcript, error) {
	start := time.Now()
	transcript, err := o.recognizer.Recognize(o.ctx, utterance)
	o.observe(StageRecognize, time.Since(start), err)
	return transcript, err
}

func (o *Orchestrator) timedTranslate(text string) (string, error) {
	start := time.Now()
	gloss, err := o.translator.Translate(o.ctx, text)
	o.observe(StageTranslate, time.Since(start), err)
	return gloss, err
}

func (o *Orchestrator) timedRender(gloss string) ([]pose.Frame, error) {
	start := time.Now()
	frames, err := o.renderer.Render(o.ctx, gloss)
	o.observe(StageRender, time.Since(start), err)
	return frames, err
}

func (o *Orchestrator) observe(stage string, d time.Duration, err error) {
	if o.stageHook != nil {
		o.stageHook(stage, d, err)
	}
}

// emit assigns the next sequence number and places the event on the stream.
func (o *Orchestrator) emit(ev Event) {
	o.mu.Lock()
	o.seq++
	ev.Seq = o.seq
	o.mu.Unlock()
	o.events <- ev
}
