// Package middleware はHTTPミドルウェアと監査ログを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// 監査ログの結果値
const (
	ResultSuccess = "success"
)

// WriteAuditLog は監査ログを出力する。resultは成功時 ResultSuccess、失敗時はエラー分類コード。
func WriteAuditLog(ctx context.Context, operation string, caller string, result string) {
	level := slog.LevelInfo
	if result != ResultSuccess {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "key operation completed",
		"operation", operation,
		"caller", caller,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
