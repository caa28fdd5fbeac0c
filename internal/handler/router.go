package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/transit-voice/backend/internal/handler/voice"
	middlewarePkg "github.com/zhouzirui/transit-voice/backend/internal/middleware"
	"github.com/zhouzirui/transit-voice/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the dialog engine.
func NewRouter(turns voice.TurnRouter, sessions voice.SessionStore) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logging(log.Logger)...)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	voiceHandler := voice.New(turns, sessions)
	wsHandler := voice.NewWebSocketHandler(turns, sessions)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		voiceHandler.RegisterRoutes(api)
		wsHandler.RegisterWebSocketRoutes(api)
	})

	return r
}
