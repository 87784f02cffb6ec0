package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"bankmesh.org/internal/auth"
	"bankmesh.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Out
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithPrincipal(ctx, auth.Principal{Login: "mng", Role: auth.RoleManager})

	if err := LogEvent(ctx, "credit.accepted", map[string]any{"bank": 1003004}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "credit.accepted" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["login"] != "mng" || entry["role"] != "manager" {
		t.Fatalf("unexpected principal fields: %v %v", entry["login"], entry["role"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["bank"] != float64(1003004) {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), " ", nil); err == nil {
		t.Fatalf("expected error for empty event")
	}
}
