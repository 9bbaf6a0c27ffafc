package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func decodeLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &m); err != nil {
		t.Fatalf("decode log line %q: %v", b, err)
	}
	return m
}

func TestSlogBridge_ContextFieldsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Component: "test"}, &buf)
	log := NewSlog(&zl).With("layer", "Maxar:Imagery")

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSession(ctx, "s-42")
	log.ErrorContext(ctx, "api key check failed", "status", 403, "err", errors.New("forbidden"))

	m := decodeLine(t, buf.Bytes())
	want := map[string]any{
		"msg":        "api key check failed",
		"level":      "error",
		"component":  "test",
		"request_id": "req-1",
		"session":    "s-42",
		"layer":      "Maxar:Imagery",
		"err":        "forbidden",
	}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("field %q=%v want %v (line=%v)", k, m[k], v, m)
		}
	}
	if m["status"] != float64(403) {
		t.Fatalf("status=%v want 403", m["status"])
	}
}

func TestSlogBridge_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	log := NewSlog(&zl)

	log.Info("dropped")
	log.Debug("dropped too")
	if buf.Len() != 0 {
		t.Fatalf("info/debug must be filtered at warn level; got %q", buf.String())
	}
	log.Warn("kept")
	if m := decodeLine(t, buf.Bytes()); m["msg"] != "kept" {
		t.Fatalf("unexpected line %v", m)
	}
}

func TestSlogBridge_Groups(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	NewSlog(&zl).WithGroup("wms").Info("layer", "url", "https://x")

	if m := decodeLine(t, buf.Bytes()); m["wms.url"] != "https://x" {
		t.Fatalf("grouped key missing; got %v", m)
	}
}

func TestWithHelpers_IgnoreEmpty(t *testing.T) {
	ctx := context.Background()
	if WithSession(ctx, "") != ctx || WithComponent(ctx, "") != ctx {
		t.Fatal("empty values must not wrap the context")
	}
	if id, _ := WithRequestID(ctx, "").Value(ctxReqIDKey).(string); len(id) != 16 {
		t.Fatalf("generated request id=%q want 16 hex chars", id)
	}
}
