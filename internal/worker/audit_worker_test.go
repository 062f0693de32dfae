package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"teamspend/internal/amqp"
	"teamspend/internal/core"
	"teamspend/internal/metrics"
	"teamspend/internal/storage/memory"
)

type fixture struct {
	store  *memory.Store
	worker *AuditWorker
	ws     core.Workspace
	member core.Member
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	ws := core.Workspace{Name: "Trip", Amount: core.Money{Cents: 100000}}
	if err := store.CreateWorkspace(ctx, &ws); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	m := core.Member{Name: "A", ContactNumber: "555", WorkspaceID: ws.ID}
	if err := store.CreateMember(ctx, &m); err != nil {
		t.Fatalf("create member: %v", err)
	}
	e := core.Expense{Description: "Lunch", Amount: core.Money{Cents: 2000}, MemberID: m.ID}
	if err := store.CreateExpense(ctx, &e); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return fixture{store: store, worker: NewAuditWorker(store, metrics.New(), 2), ws: ws, member: m}
}

func TestAuditDetectsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Stored total is still 0: the expense was written without the aggregator.
	drifts, err := f.worker.Audit(ctx)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(drifts) != 1 || drifts[0].WorkspaceID != f.ws.ID || drifts[0].Delta().Cents != -2000 {
		t.Fatalf("unexpected drift: %+v", drifts)
	}

	if err := f.store.IncrementWorkspaceTotal(ctx, f.ws.ID, core.Money{Cents: 2000}); err != nil {
		t.Fatalf("increment: %v", err)
	}
	drifts, err = f.worker.Audit(ctx)
	if err != nil || len(drifts) != 0 {
		t.Fatalf("expected consistent totals, got %+v err=%v", drifts, err)
	}

	// Audit reports, never repairs.
	ws, _ := f.store.GetWorkspace(ctx, f.ws.ID)
	if ws.TotalExpenses.Cents != 2000 {
		t.Fatalf("audit modified the total: %d", ws.TotalExpenses.Cents)
	}
}

func TestHandleEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ev   amqp.BudgetEvent
	}{
		{"by workspace", amqp.BudgetEvent{Type: amqp.EventExpenseCreated, WorkspaceID: f.ws.ID}},
		{"by member", amqp.BudgetEvent{Type: amqp.EventMemberTotalSet, MemberID: f.member.ID}},
		{"unknown member", amqp.BudgetEvent{Type: amqp.EventMemberDeleted, MemberID: "gone"}},
		{"unknown workspace", amqp.BudgetEvent{Type: amqp.EventExpenseDeleted, WorkspaceID: "gone"}},
		{"no references", amqp.BudgetEvent{Type: amqp.EventWorkspaceCreated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.worker.HandleEvent(ctx, tt.ev); err != nil {
				t.Fatalf("HandleEvent: %v", err)
			}
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
