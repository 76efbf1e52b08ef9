package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"room_relay_service/internal/relay/domain"
	"room_relay_service/pkg/logger"
)

const pingInterval = time.Minute

// RelayWebsocketHandler websocket entry point for the relay protocol.
type RelayWebsocketHandler struct {
	roomUC    *RoomUseCase
	messageUC *SendMessageUseCase
}

// NewRelayWebsocketHandler create RelayWebsocketHandler
func NewRelayWebsocketHandler(roomUC *RoomUseCase, messageUC *SendMessageUseCase) *RelayWebsocketHandler {
	return &RelayWebsocketHandler{
		roomUC:    roomUC,
		messageUC: messageUC,
	}
}

// wsConn serializes frame writes; fan-out events and request replies
// arrive from different goroutines.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(resp domain.WSResponse) {
	b, _ := json.Marshal(resp)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

// sessionHolder at most one room session per connection.
type sessionHolder struct {
	mu sync.Mutex
	s  *RoomSession
}

func (h *sessionHolder) get() *RoomSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s
}

func (h *sessionHolder) set(s *RoomSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.s = s
}

// take return the current session and clear it.
func (h *sessionHolder) take() *RoomSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.s
	h.s = nil
	return s
}

// HandleConnection run one client connection until it closes. Every exit
// path releases the room session, so a dropped connection cannot leave an
// orphaned presence entry inflating occupancy.
func (h *RelayWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	c := &wsConn{conn: conn}
	holder := &sessionHolder{}

	ticker := time.NewTicker(pingInterval)
	ctxClose, cancel := context.WithCancel(ctx)

	defer func() {
		ticker.Stop()
		cancel()
		// A dropped connection is not a voluntary exit: release the
		// subscription and presence, but leave the room standing.
		if s := holder.take(); s != nil {
			s.Close(context.Background())
		}
		conn.Close()
		logger.Log.Debug("websocket closed")
	}()

	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})

	conn.SetPongHandler(func(appData string) error {
		return nil
	})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Debug("connection closed", zap.Error(err))
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			h.sendError(c, "unknown message type")
			continue
		}
		h.textMessageAction(ctx, c, holder, message)
	}
}

func (h *RelayWebsocketHandler) textMessageAction(ctx context.Context, c *wsConn, holder *sessionHolder, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		h.sendError(c, "malformed request")
		return
	}

	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}
	switch req.Action {
	case string(domain.JoinRoom):
		if holder.get() != nil {
			resp.Error = "already in a room"
			break
		}
		handler := func(event domain.Event) {
			h.forwardEvent(c, event)
			if event.Kind == domain.EventRoomDestroyed {
				// Forced teardown is authoritative: drop the session
				// regardless of local state. Rejoining the same code
				// simply opens a fresh empty room.
				if s := holder.take(); s != nil {
					s.Close(context.Background())
				}
			}
		}
		session, msgs, err := h.roomUC.Join(ctx, req.RoomCode, handler)
		if err != nil {
			resp.Error = err.Error()
			break
		}
		holder.set(session)
		resp.Success = true
		resp.Payload["room_code"] = session.RoomCode
		resp.Payload["messages"] = msgs

	case string(domain.SendMessage):
		code := req.RoomCode
		if code == "" {
			if s := holder.get(); s != nil {
				code = s.RoomCode
			}
		}
		m, err := h.messageUC.Execute(ctx, code, domain.Kind(req.Kind), req.Content)
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Success = true
		resp.Payload["message_id"] = m.ID
		resp.Payload["kind"] = string(m.Kind)

	case string(domain.ExitRoom):
		s := holder.take()
		if s == nil {
			resp.Error = "not in a room"
			break
		}
		h.roomUC.Leave(ctx, s)
		resp.Success = true
		resp.Payload["room_code"] = s.RoomCode

	case string(domain.DestroyRoom):
		code := req.RoomCode
		if code == "" {
			if s := holder.get(); s != nil {
				code = s.RoomCode
			}
		}
		if err := h.roomUC.Destroy(ctx, code); err != nil {
			resp.Error = err.Error()
			break
		}
		// The destroyer's own subscription receives room_destroyed and
		// releases the session like every other subscriber.
		resp.Success = true

	case string(domain.GetOccupancy):
		code := req.RoomCode
		if code == "" {
			if s := holder.get(); s != nil {
				code = s.RoomCode
			}
		}
		n, err := h.roomUC.Occupancy(ctx, code)
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Success = true
		resp.Payload["occupancy"] = n

	default:
		h.sendError(c, "unknown action")
		return
	}

	if resp.Error != "" {
		logger.Log.Error("websocket action failed",
			zap.String("action", req.Action),
			zap.String("room_code", req.RoomCode),
			zap.String("err", resp.Error))
	}
	c.send(resp)
}

// forwardEvent push a fan-out event to the client.
func (h *RelayWebsocketHandler) forwardEvent(c *wsConn, event domain.Event) {
	c.send(domain.WSResponse{
		Action:  string(domain.NotifyEvent),
		Success: true,
		Payload: map[string]interface{}{
			"event": event,
		},
	})
}

func (h *RelayWebsocketHandler) sendError(c *wsConn, errorMsg string) {
	c.send(domain.WSResponse{
		Action:  "error",
		Success: false,
		Error:   errorMsg,
	})
}
