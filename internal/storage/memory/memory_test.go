package memory

import (
	"context"
	"testing"

	"teamspend/internal/core"
	"teamspend/internal/storage"
	"teamspend/internal/storage/storetest"
)

func TestMemoryStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestGetWorkspaceReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := core.Workspace{Name: "w"}
	if err := s.CreateWorkspace(ctx, &w); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.PushWorkspaceMember(ctx, w.ID, "m1"); err != nil {
		t.Fatalf("push: %v", err)
	}

	got, _ := s.GetWorkspace(ctx, w.ID)
	got.Members[0] = "tampered"

	again, _ := s.GetWorkspace(ctx, w.ID)
	if again.Members[0] != "m1" {
		t.Fatalf("caller mutated stored member list: %v", again.Members)
	}
}

func TestPingAfterClose(t *testing.T) {
	s := New()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	_ = s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping to fail after close")
	}
}
