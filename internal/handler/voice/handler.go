package voice

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
	"github.com/zhouzirui/transit-voice/backend/pkg/utils"
)

// TurnRouter 对话引擎，负责把一轮请求转换为回复。
type TurnRouter interface {
	Handle(ctx context.Context, turn dialog.Turn) dialog.Reply
}

// SessionStore 会话注册表，为不回传会话属性的客户端保存状态。
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*dialog.Session, error)
	Save(ctx context.Context, sessionID string, state *dialog.Session) error
	End(ctx context.Context, sessionID string)
}

// Handler 语音平台回调的HTTP处理器
type Handler struct {
	router   TurnRouter
	sessions SessionStore
}

// New 创建语音处理器
func New(router TurnRouter, sessions SessionStore) *Handler {
	return &Handler{router: router, sessions: sessions}
}

// RegisterRoutes 注册语音回调路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/turn", h.handleTurn)
}

type turnResponse struct {
	SessionID string `json:"sessionId"`
	dialog.Reply
}

// handleTurn 处理一轮对话
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var turn dialog.Turn
	if err := json.NewDecoder(r.Body).Decode(&turn); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateTurn(turn); msg != "" {
		utils.RespondError(w, http.StatusBadRequest, msg)
		return
	}
	if turn.SessionID == "" {
		turn.SessionID = uuid.NewString()
	}

	reply := runTurn(r.Context(), h.router, h.sessions, turn)
	hlog.FromRequest(r).Debug().
		Str("session", turn.SessionID).
		Str("intent", turn.IntentName).
		Bool("end", reply.ShouldEndSession).
		Msg("turn handled")

	utils.RespondJSON(w, http.StatusOK, turnResponse{SessionID: turn.SessionID, Reply: reply})
}

// runTurn 补全会话属性、调用对话引擎并回写注册表。
func runTurn(ctx context.Context, router TurnRouter, sessions SessionStore, turn dialog.Turn) dialog.Reply {
	if turn.Session == nil && sessions != nil {
		if state, err := sessions.Load(ctx, turn.SessionID); err == nil {
			turn.Session = state
		}
	}

	reply := router.Handle(ctx, turn)
	if sessions == nil {
		return reply
	}

	switch {
	case turn.Kind == dialog.TurnSessionEnded, reply.ShouldEndSession:
		sessions.End(ctx, turn.SessionID)
	case reply.Session != nil:
		if err := sessions.Save(ctx, turn.SessionID, reply.Session); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("session", turn.SessionID).Msg("failed to save session")
		}
	}
	return reply
}

func validateTurn(turn dialog.Turn) string {
	switch turn.Kind {
	case dialog.TurnLaunch, dialog.TurnSessionEnded, dialog.TurnSkillEnabled, dialog.TurnSkillDisabled:
	case dialog.TurnIntent:
		if turn.IntentName == "" {
			return "intentName is required"
		}
	case "":
		return "kind is required"
	default:
		return "unsupported turn kind: " + string(turn.Kind)
	}
	return ""
}
