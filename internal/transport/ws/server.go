package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"roguelite.ai/internal/protocol"
	"roguelite.ai/internal/sim/multiworld"
)

const (
	outboxSize   = 32
	joinTimeout  = 5 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// Sim is the part of the simulation server a session talks to.
type Sim interface {
	Join(ctx context.Context, name, worldPref string, out chan []byte) (multiworld.JoinResponse, error)
	Leave(playerID string)
	Inbox() chan<- multiworld.ActionEnvelope
	CurrentTick() uint64
}

type Server struct {
	sim Sim
	log *slog.Logger

	upgrader websocket.Upgrader
}

func NewServer(sim Sim, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sim: sim,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, out := s.handshake(r.Context(), conn)
		if playerID == "" {
			return
		}
		log := s.log.With("player_id", playerID)
		log.Info("session started", "remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleMessage(playerID, out, msg)
		}

		cancel()
		s.sim.Leave(playerID)
		log.Info("session closed")
	}
}

func (s *Server) handleMessage(playerID string, out chan []byte, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		reject(out, "", protocol.ErrProtoBadRequest, "malformed message")
		return
	}
	if base.Type != protocol.TypeAct {
		reject(out, "", protocol.ErrProtoBadRequest, "unexpected message type "+base.Type)
		return
	}
	var act protocol.ActMsg
	if err := json.Unmarshal(msg, &act); err != nil {
		reject(out, "", protocol.ErrProtoBadRequest, err.Error())
		return
	}
	if act.ProtocolVersion != protocol.Version {
		reject(out, act.Ref, protocol.ErrProtoVersion, "protocol_version must be "+protocol.Version)
		return
	}
	select {
	case s.sim.Inbox() <- multiworld.ActionEnvelope{PlayerID: playerID, Act: act}:
	default:
		reject(out, act.Ref, protocol.ErrWorldBusy, "action queue full")
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (playerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "bad HELLO")
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return "", nil
	}

	out = make(chan []byte, outboxSize)
	jctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()
	resp, err := s.sim.Join(jctx, strings.TrimSpace(hello.PlayerName), hello.WorldPreference, out)
	if err != nil {
		_ = writeJSON(conn, ack("HELLO", protocol.ErrWorldBusy, err.Error()))
		closeWith(conn, websocket.CloseTryAgainLater, "server busy")
		return "", nil
	}
	if resp.Code != "" {
		_ = writeJSON(conn, ack("HELLO", resp.Code, resp.Message))
		closeWith(conn, websocket.ClosePolicyViolation, resp.Code)
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.sim.Leave(resp.Welcome.PlayerID)
		return "", nil
	}
	return resp.Welcome.PlayerID, out
}

func ack(ref, code, message string) protocol.AckMsg {
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          ref,
		Accepted:        false,
		Code:            code,
		Message:         message,
	}
}

// reject queues an ACK on the session outbox; it is dropped when the outbox is full.
func reject(out chan []byte, ref, code, message string) {
	b, err := json.Marshal(ack(ref, code, message))
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
