package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
	"github.com/zhouzirui/transit-voice/backend/internal/service/session"
)

type echoRouter struct{}

func (echoRouter) Handle(_ context.Context, turn dialog.Turn) dialog.Reply {
	return dialog.Tell("echo " + turn.IntentName)
}

func TestHealth(t *testing.T) {
	r := NewRouter(echoRouter{}, session.NewService(time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS header")
	}
}

func TestTurnRoute(t *testing.T) {
	r := NewRouter(echoRouter{}, session.NewService(time.Minute))

	body := []byte(`{"kind":"intent","intentName":"GetArrivalsIntent","sessionId":"s1","deviceId":"d1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/turn", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["speechText"] != "echo GetArrivalsIntent" {
		t.Fatalf("unexpected reply: %v", out)
	}
}

func TestPreflight(t *testing.T) {
	r := NewRouter(echoRouter{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/turn", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}
