package infra

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"key-manager-service/config"
)

// TraceHandler はスパンのトレース情報をログに付与するslogハンドラ。
type TraceHandler struct {
	next      slog.Handler
	projectID string
	enabled   bool
}

// NewTraceHandler はnextにトレース情報を追加して渡すハンドラを生成する。
// トレーシングが無効な設定ではレコードをそのまま渡す。
func NewTraceHandler(next slog.Handler, cfg *config.Config) *TraceHandler {
	return &TraceHandler{next: next, projectID: cfg.GoogleCloudProject, enabled: cfg.OtelEnabled}
}

func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.enabled {
		r.AddAttrs(h.traceAttrs(trace.SpanContextFromContext(ctx))...)
	}
	return h.next.Handle(ctx, r)
}

// traceAttrs はスパンコンテキストからログ属性を組み立てる。
// GOOGLE_CLOUD_PROJECT があればCloud Loggingの相関フィールドも付ける。
func (h *TraceHandler) traceAttrs(sc trace.SpanContext) []slog.Attr {
	if !sc.IsValid() {
		return nil
	}
	traceID := sc.TraceID().String()
	spanID := sc.SpanID().String()

	attrs := []slog.Attr{
		slog.String("trace", traceID),
		slog.String("spanId", spanID),
		slog.Bool("traceSampled", sc.IsSampled()),
	}
	if h.projectID != "" {
		attrs = append(attrs,
			slog.String("logging.googleapis.com/trace", "projects/"+h.projectID+"/traces/"+traceID),
			slog.String("logging.googleapis.com/spanId", spanID),
		)
	}
	return attrs
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{next: h.next.WithAttrs(attrs), projectID: h.projectID, enabled: h.enabled}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{next: h.next.WithGroup(name), projectID: h.projectID, enabled: h.enabled}
}

// ParseLogLevel はLOG_LEVELの文字列をslog.Levelに変換する。未知の値はINFO。
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replaceAttr はlevelをCloud Loggingのseverityに改名し、バイト列の値を長さだけに置き換える。
// 鍵や平文がログに出ることはない。
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		a.Key = "severity"
		return a
	}
	if a.Value.Kind() == slog.KindAny {
		if b, ok := a.Value.Any().([]byte); ok {
			return slog.String(a.Key, fmt.Sprintf("[redacted %d bytes]", len(b)))
		}
	}
	return a
}

// SetupLogger はトレース情報付きのJSONロガーをwに出力するグローバルロガーとして設定する。
func SetupLogger(w io.Writer, cfg *config.Config) {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLogLevel(cfg.LogLevel),
		ReplaceAttr: replaceAttr,
	})
	logger := slog.New(NewTraceHandler(jsonHandler, cfg))
	slog.SetDefault(logger.With(slog.String("service", cfg.OtelServiceName)))
}
