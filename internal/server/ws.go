package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/oncoline/chemochat-go/internal/engine"
	"github.com/oncoline/chemochat-go/internal/store"
)

// handleWebsocket attaches a client to a session. The server first sends a
// connection acknowledgement with the session's current state, then processes
// inbound messages one turn at a time, writing the turn's events back as
// individual frames.
//
// Reads run in their own goroutine: once the connection is hijacked the
// request context no longer tracks the client, so a read failure is the only
// disconnect signal, and it must cancel any turn in flight.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	ack, err := s.engine.Acknowledge(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session", sessionID, "error", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(toWireFrame(*ack)); err != nil {
		s.logger.Warn("write connection ack", "session", sessionID, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan engine.Inbound)
	readErr := make(chan error, 1)
	go func() {
		for {
			var in engine.Inbound
			if err := conn.ReadJSON(&in); err != nil {
				cancel()
				readErr <- err
				return
			}
			select {
			case inbound <- in:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var in engine.Inbound
		select {
		case err := <-readErr:
			if !isNormalClose(err) {
				s.logger.Warn("websocket read failed", "session", sessionID, "error", err)
			}
			return
		case in = <-inbound:
		}

		events, err := s.engine.HandleInbound(ctx, sessionID, in)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("turn failed", "session", sessionID, "error", err)
			if errors.Is(err, store.ErrNotFound) {
				_ = conn.WriteJSON(wireFrame{Type: "error", Content: "session not found"})
				return
			}
			_ = conn.WriteJSON(wireFrame{Type: "error", Content: "internal error"})
			continue
		}

		for _, ev := range events {
			if err := conn.WriteJSON(toWireFrame(ev)); err != nil {
				s.logger.Warn("websocket write failed", "session", sessionID, "error", err)
				return
			}
		}
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
