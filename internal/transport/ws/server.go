// Package ws serves the read-only spectator feed: HELLO in, WELCOME then a STATE
// frame per tick out, with EVENT_BATCH paging over recent events.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tagarena.dev/internal/protocol"
	"tagarena.dev/internal/sim/round"
)

type Server struct {
	runner *round.Runner
	log    *log.Logger

	// MaxSpectators caps concurrent sessions; 0 means unlimited.
	MaxSpectators int

	upgrader websocket.Upgrader
	active   atomic.Int64
}

func NewServer(rn *round.Runner, logger *log.Logger) *Server {
	s := &Server{
		runner: rn,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if s.MaxSpectators > 0 && s.active.Load() >= int64(s.MaxSpectators) {
			_ = writeJSON(conn, errorMsg(protocol.ErrRoundBusy, "too many spectators"))
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "busy"), time.Now().Add(time.Second))
			return
		}
		s.active.Add(1)
		defer s.active.Add(-1)

		sessionID, out := s.handshake(r.Context(), conn)
		if sessionID == "" {
			return
		}
		s.log.Printf("spectator %s joined from %s", sessionID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		replies := make(chan []byte, 4)

		// Writer goroutine; the only one writing to conn after the handshake.
		go func() {
			defer func() {
				cancel()
				// Unblocks the reader when the round closes the feed.
				_ = conn.Close()
			}()
			for {
				var b []byte
				var ok bool
				select {
				case <-ctx.Done():
					return
				case b, ok = <-out:
					if !ok {
						return
					}
				case b = <-replies:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if reply := s.handleMessage(ctx, msg); reply != nil {
				select {
				case replies <- reply:
				case <-ctx.Done():
				}
			}
			if ctx.Err() != nil {
				break
			}
		}

		// Cleanup.
		cancel()
		s.runner.LeaveSpectator(sessionID)
		s.log.Printf("spectator %s left", sessionID)
	}
}

func (s *Server) handleMessage(ctx context.Context, msg []byte) []byte {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return mustJSON(errorMsg(protocol.ErrProtoBadRequest, "invalid json"))
	}
	if base.ProtocolVersion != protocol.Version {
		return mustJSON(errorMsg(protocol.ErrProtoVersion, "bad protocol_version"))
	}
	switch base.Type {
	case protocol.TypeEventBatchReq:
		var req protocol.EventBatchReqMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			return mustJSON(errorMsg(protocol.ErrBadRequest, err.Error()))
		}
		qctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		items, next, err := s.runner.EventsAfter(qctx, req.SinceCursor, req.Limit)
		if err != nil {
			return mustJSON(errorMsg(protocol.ErrInternal, err.Error()))
		}
		resp := protocol.EventBatchMsg{
			Type:            protocol.TypeEventBatch,
			ProtocolVersion: protocol.Version,
			ReqID:           req.ReqID,
			Events:          make([]protocol.EventBatchItem, 0, len(items)),
			NextCursor:      next,
		}
		for _, it := range items {
			resp.Events = append(resp.Events, protocol.EventBatchItem{Cursor: it.Cursor, Event: it.Event})
		}
		return mustJSON(resp)
	}
	return mustJSON(errorMsg(protocol.ErrBadRequest, fmt.Sprintf("unsupported message type %q", base.Type)))
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, errorMsg(protocol.ErrProtoVersion, "bad protocol_version"))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)
	sessionID = uuid.NewString()

	jctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	w, err := s.runner.JoinSpectator(jctx, round.SpectatorJoin{
		SessionID:  sessionID,
		Out:        out,
		EveryTicks: hello.Capabilities.EveryTicks,
	})
	if err != nil {
		_ = writeJSON(conn, errorMsg(protocol.ErrInternal, "round not running"))
		return "", nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Round:           w.Round,
		Level:           w.Level,
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.runner.LeaveSpectator(sessionID)
		return "", nil
	}
	return sessionID, out
}

func errorMsg(code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, Code: code, Message: message}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return err
		}
		return err
	}
	return nil
}
