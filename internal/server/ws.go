package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/voxsign/voxsign/internal/observe"
	"github.com/voxsign/voxsign/internal/pipeline"
	"github.com/voxsign/voxsign/internal/session"
)

// stopCommand is the only accepted text message; any other text payload is a
// transport error and closes the connection.
const stopCommand = "STOP"

// maxMessageBytes bounds a single inbound websocket message. Audio arrives in
// small chunks; one megabyte is far above any sane chunk size.
const maxMessageBytes = 1 << 20

// handleTranslate runs one streaming translation session over a websocket.
//
// Inbound: binary messages carry raw PCM of any chunk size; the text message
// "STOP" requests stop/flush. Outbound: single-key JSON events in sequence
// order. A readiness or session-setup failure is reported as one error event
// and the connection closes without any segmentation.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn("ws: accept failed", "err", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	// Readiness gates session acceptance: models load once at process start
	// and a session must not open against missing collaborators.
	if err := s.health.Err(ctx); err != nil {
		log.Warn("ws: rejecting session, not ready", "err", err)
		s.refuse(ctx, conn, "service not ready")
		return
	}

	ctrl, err := s.manager.Open()
	if err != nil {
		log.Error("ws: session setup failed", "err", err)
		s.refuse(ctx, conn, "session setup failed")
		return
	}

	// The writer goroutine owns the socket's write side. It drains the event
	// channel to completion even after a write error so pipeline runs never
	// block on a dead client.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		var writeFailed bool
		for ev := range ctrl.Events() {
			if writeFailed {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error("ws: marshal event", "session_id", ctrl.ID(), "kind", ev.Kind.String(), "err", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				log.Debug("ws: write failed, discarding remaining events",
					"session_id", ctrl.ID(), "err", err)
				writeFailed = true
			}
		}
	}()

	s.intake(ctx, conn, ctrl, writerDone)
}

// refuse sends a single error event and closes the connection.
func (s *Server) refuse(ctx context.Context, conn *websocket.Conn, msg string) {
	data, err := json.Marshal(pipeline.Event{Kind: pipeline.KindError, Text: msg})
	if err == nil {
		_ = conn.Write(ctx, websocket.MessageText, data)
	}
	_ = conn.Close(websocket.StatusTryAgainLater, msg)
}

// intake is the connection's single-threaded read loop. Each inbound payload
// is processed to completion before the next is read, so no two chunks of one
// session are ever segmented concurrently.
func (s *Server) intake(ctx context.Context, conn *websocket.Conn, ctrl *session.Controller, writerDone <-chan struct{}) {
	log := observe.Logger(ctx).With("session_id", ctrl.ID())

	// teardown closes the session, lets the writer drain the remaining
	// events, then optionally reports errMsg as a final error event before
	// closing the socket.
	teardown := func(status websocket.StatusCode, reason, errMsg string) {
		if err := ctrl.Close(); err != nil {
			log.Warn("ws: session close", "err", err)
		}
		<-writerDone
		if errMsg != "" {
			if data, err := json.Marshal(pipeline.Event{Kind: pipeline.KindError, Text: errMsg}); err == nil {
				_ = conn.Write(ctx, websocket.MessageText, data)
			}
		}
		_ = conn.Close(status, reason)
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			// Abrupt disconnect. An in-flight run finishes in the
			// background; its events are discarded by the writer.
			log.Info("ws: connection closed", "err", err)
			teardown(websocket.StatusNormalClosure, "", "")
			return
		}

		switch typ {
		case websocket.MessageBinary:
			if err := ctrl.Ingest(data); err != nil {
				log.Error("ws: ingest", "err", err)
			}

		case websocket.MessageText:
			if string(data) != stopCommand {
				log.Warn("ws: malformed control payload, closing", "payload_bytes", len(data))
				teardown(websocket.StatusUnsupportedData, "unknown control message", "unknown control message")
				return
			}
			// Stop waits on the single-flight gate and flushes any
			// remaining buffered speech, so every result or error event is
			// enqueued before teardown drains the writer.
			if err := ctrl.Stop(ctx); err != nil {
				log.Warn("ws: stop/flush", "err", err)
			}
			teardown(websocket.StatusNormalClosure, "stopped", "")
			return
		}
	}
}
