package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelstream.dev/internal/protocol"
	"voxelstream.dev/internal/sim/world"
)

// Server terminates viewer websockets and bridges them onto the world
// loop's channels. One connection is one session.
type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
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

		sid, tickOut, dataOut := s.handshake(conn)
		if sid == "" {
			return
		}
		s.log.Printf("viewer %s connected from %s", sid, r.RemoteAddr)

		defer func() {
			select {
			case s.world.ViewerLeave() <- sid:
			default:
				// World loop is stopping; nothing else to do.
			}
			s.log.Printf("viewer %s disconnected", sid)
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine. Chunk traffic and tick traffic arrive on
		// separate channels so a mesh backlog never delays TICK.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-tickOut:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				case b, ok := <-dataOut:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
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
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeInput:
				var in protocol.InputMsg
				if err := json.Unmarshal(msg, &in); err != nil {
					continue
				}
				if in.ProtocolVersion != protocol.Version {
					continue
				}
				select {
				case s.world.Inputs() <- world.InputEnvelope{SessionID: sid, Msg: in}:
				default:
					// Intent is sticky; the next INPUT supersedes this one.
				}
			case protocol.TypeVoxelsGet:
				var get protocol.VoxelsGetMsg
				if err := json.Unmarshal(msg, &get); err != nil {
					continue
				}
				if get.ProtocolVersion != protocol.Version {
					continue
				}
				select {
				case s.world.VoxelsReq() <- world.VoxelsRequest{SessionID: sid, Key: get.Key}:
				default:
					// Debug surface; the client may resend.
				}
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sid string, tickOut, dataOut chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.reject(conn, "expected HELLO")
		return "", nil, nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.reject(conn, "malformed HELLO")
		return "", nil, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.reject(conn, "bad protocol_version")
		return "", nil, nil
	}
	if hello.ViewerName == "" {
		hello.ViewerName = "viewer"
	}

	cfg := s.world.Config()
	sid = fmt.Sprintf("V%d", s.nextID.Add(1))
	tickOut = make(chan []byte, 8)
	dataOut = make(chan []byte, cfg.Viewer.SendBuffer)

	respCh := make(chan protocol.WelcomeMsg, 1)
	select {
	case s.world.ViewerJoin() <- world.ViewerJoinRequest{
		SessionID: sid,
		Name:      hello.ViewerName,
		TickOut:   tickOut,
		DataOut:   dataOut,
		Resp:      respCh,
	}:
	default:
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
		return "", nil, nil
	}
	welcome := <-respCh

	if err := writeJSON(conn, welcome); err != nil {
		return "", nil, nil
	}
	return sid, tickOut, dataOut
}

// reject answers a broken handshake with a typed ERROR, then closes.
func (s *Server) reject(conn *websocket.Conn, reason string) {
	_ = writeJSON(conn, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrProtoBadRequest,
		Message:         reason,
	})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
