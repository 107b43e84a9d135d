package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"key-manager-service/internal/middleware"
)

// NewRouter はルーターを生成する。
func NewRouter(h *CommandHandler, health *HealthHandler) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", health.Health)

	// ルート定義
	r.Route("/v1/commands", func(r chi.Router) {
		r.Use(middleware.Session)
		r.Post("/{code}", h.Invoke)
	})

	return otelhttp.NewHandler(r, "key-manager-service",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
