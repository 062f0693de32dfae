package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"teamspend/internal/core"
	"teamspend/internal/storage"
	"teamspend/internal/storage/storetest"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	return repo
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store { return newTestRepo(t) })
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	w := core.Workspace{Name: "Persisted", Amount: core.Money{Cents: 5000}}
	if err := repo.CreateWorkspace(ctx, &w); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.IncrementWorkspaceTotal(ctx, w.ID, core.Money{Cents: 1234}); err != nil {
		t.Fatalf("increment: %v", err)
	}
	repo.Close()

	// Migrations must be idempotent on an existing database.
	repo, err = storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()

	got, err := repo.GetWorkspace(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalExpenses.Cents != 1234 || got.Name != "Persisted" {
		t.Fatalf("unexpected workspace after reopen: %+v", got)
	}
}

func TestResolveWorkspace(t *testing.T) {
	repo := newTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	w := core.Workspace{Name: "w"}
	if err := repo.CreateWorkspace(ctx, &w); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name   string
		member core.Member
		wantOK bool
		wantNF bool
	}{
		{"no workspace", core.Member{}, false, false},
		{"existing workspace", core.Member{WorkspaceID: w.ID}, true, false},
		{"dangling reference", core.Member{WorkspaceID: "gone"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := storage.ResolveWorkspace(ctx, repo, tt.member)
			if ok != tt.wantOK || core.IsNotFound(err) != tt.wantNF {
				t.Fatalf("ok=%v err=%v", ok, err)
			}
			if ok && got.ID != w.ID {
				t.Fatalf("resolved wrong workspace: %s", got.ID)
			}
		})
	}
}
