package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// WebSocketHandler WebSocket对话处理器，一个连接对应一次会话
type WebSocketHandler struct {
	router   TurnRouter
	sessions SessionStore
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(router TurnRouter, sessions SessionStore) *WebSocketHandler {
	return &WebSocketHandler{
		router:   router,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TurnMessage 一轮对话请求
type TurnMessage struct {
	Kind       dialog.TurnKind   `json:"kind"`
	IntentName string            `json:"intentName,omitempty"`
	Slots      map[string]string `json:"slots,omitempty"`
	DeviceID   string            `json:"deviceId"`
	PersonID   string            `json:"personId,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type connectionState struct {
	sessionID string
	session   *dialog.Session
	logger    zerolog.Logger
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	state := &connectionState{
		sessionID: sessionID,
		logger:    log.With().Str("component", "websocket").Str("session", sessionID).Logger(),
	}
	if h.sessions != nil {
		if existing, err := h.sessions.Load(r.Context(), sessionID); err == nil {
			state.session = existing
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		state.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	state.logger.Info().Msg("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, outgoingMessage{
		Type:      "connected",
		SessionID: sessionID,
		Timestamp: time.Now().Unix(),
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					state.logger.Warn().Err(err).Msg("read error")
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(readTimeout))

			if msg.SessionID != "" && msg.SessionID != sessionID {
				h.sendError(conn, "session mismatch")
				continue
			}

			h.handleMessage(ctx, conn, state, &msg)
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "turn":
		h.handleTurnMessage(ctx, conn, state, msg.Data)
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleTurnMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var payload TurnMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(conn, "invalid turn payload")
		return
	}

	turn := dialog.Turn{
		Kind:       payload.Kind,
		IntentName: payload.IntentName,
		Slots:      payload.Slots,
		SessionID:  state.sessionID,
		DeviceID:   payload.DeviceID,
		PersonID:   payload.PersonID,
		Session:    state.session,
	}
	if msg := validateTurn(turn); msg != "" {
		h.sendError(conn, msg)
		return
	}

	reply := runTurn(state.logger.WithContext(ctx), h.router, h.sessions, turn)
	state.session = reply.Session
	if reply.ShouldEndSession {
		state.session = nil
	}

	h.send(conn, outgoingMessage{
		Type:      "reply",
		SessionID: state.sessionID,
		Data:      reply,
		Timestamp: time.Now().Unix(),
	})
}

func (h *WebSocketHandler) send(conn *websocket.Conn, msg outgoingMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Warn().Err(err).Str("component", "websocket").Msg("write failed")
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	})
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
