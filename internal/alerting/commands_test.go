package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func updatesResponse(updates ...map[string]any) map[string]any {
	return map[string]any{"ok": true, "result": updates}
}

func update(id int64, chatID int64, text string) map[string]any {
	return map[string]any{
		"update_id": id,
		"message": map[string]any{
			"text": text,
			"chat": map[string]any{"id": chatID},
		},
	}
}

func TestCommandSourcePollParsesCommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(updatesResponse(
			update(10, 42, "/reset BTCUSDT momentum BUY"),
			update(11, 42, "plain chatter"),
			update(12, 99, "/status"), // wrong chat
			update(13, 42, "/status"),
		))
	}))
	defer srv.Close()

	source := NewTelegramCommandSource("token", "42", srv.URL, time.Second, testLogger())
	commands, err := source.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll should succeed: %v", err)
	}

	if len(commands) != 2 {
		t.Fatalf("expected 2 commands, got %d: %#v", len(commands), commands)
	}
	if commands[0].Name != "/reset" || len(commands[0].Args) != 3 {
		t.Fatalf("unexpected first command: %#v", commands[0])
	}
	if commands[1].Name != "/status" {
		t.Fatalf("unexpected second command: %#v", commands[1])
	}
}

func TestCommandSourceOffsetAdvances(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		_ = json.NewEncoder(w).Encode(updatesResponse(update(7, 42, "/status")))
	}))
	defer srv.Close()

	source := NewTelegramCommandSource("token", "42", srv.URL, time.Second, testLogger())
	if _, err := source.Poll(context.Background()); err != nil {
		t.Fatalf("first poll failed: %v", err)
	}
	if _, err := source.Poll(context.Background()); err != nil {
		t.Fatalf("second poll failed: %v", err)
	}

	if offsets[0] != "0" || offsets[1] != "8" {
		t.Fatalf("offset cursor should advance past consumed updates, got %v", offsets)
	}
}

func TestCommandSourceNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	source := NewTelegramCommandSource("token", "42", srv.URL, time.Second, testLogger())
	if _, err := source.Poll(context.Background()); err == nil {
		t.Fatal("ok=false must surface an error")
	}
}
