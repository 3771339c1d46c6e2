package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vibelinechat/vibeline/internal/adapter/driven/gateway/ws"
	"github.com/vibelinechat/vibeline/internal/core/port"
	"github.com/vibelinechat/vibeline/internal/core/service"
)

type Handler struct {
	Calls    *service.CallService
	Hub      *ws.Hub
	Identity port.IdentityVerifier
}

func NewHandler(calls *service.CallService, hub *ws.Hub, identity port.IdentityVerifier) *Handler {
	return &Handler{
		Calls:    calls,
		Hub:      hub,
		Identity: identity,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/ws", h.ServeWS)

	return r
}
