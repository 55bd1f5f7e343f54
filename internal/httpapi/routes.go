package httpapi

import (
	"context"
	"net/http"

	"github.com/DoyleJ11/seabattle-client/internal/session"
	"github.com/DoyleJ11/seabattle-client/internal/ws"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Source is the read side of a session.
type Source interface {
	ws.Source
	View(ctx context.Context) (session.View, error)
	Feed() *session.Feed
}

func SetupRoutes(src Source, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/snapshot", Snapshot(src))
	r.Get("/log", Log(src))
	r.Get("/ws", ws.Handler(src, log))
	return r
}
