package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"

	"github.com/pairly/messaging-service/config"
	"github.com/pairly/messaging-service/internal/domain/registry"
	"github.com/pairly/messaging-service/internal/handler/lp"
	"github.com/pairly/messaging-service/internal/handler/rest"
	"github.com/pairly/messaging-service/internal/handler/ws"
)

// NewRouter assembles the full HTTP surface:
//
//	/ws           WebSocket upgrade (primary real-time transport)
//	/poll         long-poll fallback
//	/api/v1/...   request/response API
//	/debug/stats  registry snapshot for the monitor command
func NewRouter(
	wsHandler *ws.WSHandler,
	lpHandler *lp.LPHandler,
	restHandler *rest.RESTHandler,
	hub registry.Hubber,
) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/ws", wsHandler.ServeHTTP)
	r.Get("/poll", lpHandler.Poll)
	r.Mount("/api/v1", restHandler.Routes())

	r.Get("/debug/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(hub.Stats())
	})

	return r
}

func NewServer(cfg *config.Config, router chi.Router) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}
}

var Module = fx.Module("http-server",
	fx.Provide(
		NewRouter,
		NewServer,
	),
	fx.Invoke(func(lc fx.Lifecycle, srv *http.Server, cfg *config.Config, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					logger.Info("http server listening", "addr", srv.Addr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("http server failed", "err", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			},
		})
	}),
)
