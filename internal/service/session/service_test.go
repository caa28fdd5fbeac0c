package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
	"github.com/zhouzirui/transit-voice/backend/internal/service/session"
)

func TestServiceSaveAndLoad(t *testing.T) {
	svc := session.NewService(time.Minute)
	ctx := context.Background()

	state := dialog.NewSession()
	state.City.Assign("Seattle")
	state.DialogState = dialog.StateStopBeforeCity

	if err := svc.Save(ctx, "s1", state); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	got, err := svc.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if got.City.Value != "Seattle" || !got.City.Set {
		t.Fatalf("unexpected city: %+v", got.City)
	}
	if got.DialogState != dialog.StateStopBeforeCity {
		t.Fatalf("unexpected dialog state: %s", got.DialogState)
	}

	got.City.Assign("Tampa")
	again, _ := svc.Load(ctx, "s1")
	if again.City.Value != "Seattle" {
		t.Fatalf("stored state must not alias loaded copies")
	}
}

func TestServiceLoadNotFound(t *testing.T) {
	svc := session.NewService(time.Minute)
	ctx := context.Background()

	if _, err := svc.Load(ctx, "missing"); err != session.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Load(ctx, ""); err != session.ErrSessionRequired {
		t.Fatalf("expected ErrSessionRequired, got %v", err)
	}
}

func TestServiceEnd(t *testing.T) {
	svc := session.NewService(0)
	ctx := context.Background()

	if err := svc.Save(ctx, "s1", dialog.NewSession()); err != nil {
		t.Fatalf("Save err: %v", err)
	}
	svc.End(ctx, "s1")
	if _, err := svc.Load(ctx, "s1"); err == nil {
		t.Fatal("expected error for ended session")
	}
}

func TestServiceEvictIdle(t *testing.T) {
	svc := session.NewService(time.Nanosecond)
	ctx := context.Background()

	if err := svc.Save(ctx, "s1", dialog.NewSession()); err != nil {
		t.Fatalf("Save err: %v", err)
	}
	time.Sleep(time.Millisecond)
	if n := svc.Evict(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
}
