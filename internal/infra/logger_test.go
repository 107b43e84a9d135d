package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"key-manager-service/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTraceHandler_AddsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{GoogleCloudProject: "test-project", OtelEnabled: true}
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil), cfg))

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log: %v", err)
	}
	if entry["trace"] != traceID.String() {
		t.Errorf("want trace %s, got %v", traceID, entry["trace"])
	}
	if entry["logging.googleapis.com/trace"] != "projects/test-project/traces/"+traceID.String() {
		t.Errorf("unexpected cloud trace field: %v", entry["logging.googleapis.com/trace"])
	}
}

func TestTraceHandler_DisabledSkipsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil), &config.Config{}))

	logger.InfoContext(context.Background(), "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log: %v", err)
	}
	if _, ok := entry["trace"]; ok {
		t.Error("trace field should be absent when tracing is disabled")
	}
}

func TestSetupLogger_SeverityAndRedaction(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupLogger(&buf, &config.Config{LogLevel: "DEBUG", OtelServiceName: "key-manager-test"})

	slog.Debug("loaded", "key", []byte{1, 2, 3, 4}, "object_id", "aes_key")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log: %v", err)
	}
	if entry["severity"] != "DEBUG" {
		t.Errorf("want severity DEBUG, got %v", entry["severity"])
	}
	if _, ok := entry["level"]; ok {
		t.Error("level key should be renamed to severity")
	}
	if entry["service"] != "key-manager-test" {
		t.Errorf("unexpected service: %v", entry["service"])
	}
	if entry["key"] != "[redacted 4 bytes]" {
		t.Errorf("byte values must be redacted, got %v", entry["key"])
	}
	if entry["object_id"] != "aes_key" {
		t.Errorf("unexpected object_id: %v", entry["object_id"])
	}
}
