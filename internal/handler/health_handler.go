package handler

import (
	"context"
	"net/http"
	"time"

	"key-manager-service/pkg/httputil"
)

// Pinger は依存先の疎通確認を行う。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler は死活監視エンドポイントを提供する。
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler は新しいHealthHandlerを生成する。
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health は GET /healthz を処理する。
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		httputil.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
