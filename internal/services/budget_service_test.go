package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"teamspend/internal/amqp"
	"teamspend/internal/core"
	"teamspend/internal/log"
	"teamspend/internal/storage"
	"teamspend/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.BudgetEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev amqp.BudgetEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// failingIncrementStore fails every workspace total adjustment.
type failingIncrementStore struct {
	storage.Store
}

func (failingIncrementStore) IncrementWorkspaceTotal(context.Context, string, core.Money) error {
	return &core.StoreError{Op: "increment workspace total", Err: errors.New("disk full")}
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: &bytes.Buffer{}})
}

func newTestService(t *testing.T) (*BudgetService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	svc := NewBudgetService(memory.New(), pub, nil, quietLogger())
	t.Cleanup(func() { svc.Close() })
	return svc, pub
}

func cents(c int64) core.Money { return core.Money{Cents: c} }

func mustWorkspace(t *testing.T, svc *BudgetService, name string, amount int64) core.Workspace {
	t.Helper()
	w, err := svc.CreateWorkspace(context.Background(), name, cents(amount))
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return w
}

func mustMember(t *testing.T, svc *BudgetService, name, workspaceID string) core.Member {
	t.Helper()
	m, err := svc.CreateMember(context.Background(), core.Member{Name: name, ContactNumber: "555", WorkspaceID: workspaceID})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return m
}

func workspaceTotal(t *testing.T, svc *BudgetService, id string) int64 {
	t.Helper()
	w, err := svc.store.GetWorkspace(context.Background(), id)
	if err != nil {
		t.Fatalf("get workspace: %v", err)
	}
	return w.TotalExpenses.Cents
}

func TestTripScenario(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	w := mustWorkspace(t, svc, "Trip", 100000)
	if !w.TotalExpenses.IsZero() {
		t.Fatalf("new workspace total: %d", w.TotalExpenses.Cents)
	}
	m := mustMember(t, svc, "A", w.ID)

	e, err := svc.CreateExpense(ctx, m.ID, "Lunch", cents(2000))
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if got := workspaceTotal(t, svc, w.ID); got != 2000 {
		t.Fatalf("after create: total %d, want 2000", got)
	}

	if err := svc.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
	if got := workspaceTotal(t, svc, w.ID); got != 0 {
		t.Fatalf("after delete: total %d, want 0", got)
	}

	want := []amqp.EventType{
		amqp.EventWorkspaceCreated,
		amqp.EventMemberCreated,
		amqp.EventExpenseCreated,
		amqp.EventExpenseDeleted,
	}
	got := pub.types()
	if len(got) != len(want) {
		t.Fatalf("events: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %s want %s", i, got[i], want[i])
		}
	}
	if pub.events[2].WorkspaceID != w.ID || pub.events[2].AmountCents != 2000 {
		t.Fatalf("expense.created payload: %+v", pub.events[2])
	}
}

func TestCreateWorkspaceThenList(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
	}{
		{"Trip", 100000},
		{"Zero", 0},
		{"Groceries", 12345},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			mustWorkspace(t, svc, tt.name, tt.amount)

			list, err := svc.ListWorkspaces(context.Background())
			if err != nil || len(list) != 1 {
				t.Fatalf("list: %v %v", list, err)
			}
			got := list[0]
			if got.Name != tt.name || got.Amount.Cents != tt.amount || !got.TotalExpenses.IsZero() {
				t.Fatalf("unexpected workspace: %+v", got.Workspace)
			}
		})
	}
}

func TestTotalEqualsSumOfCreatedExpenses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	w := mustWorkspace(t, svc, "w", 0)
	a := mustMember(t, svc, "A", w.ID)
	b := mustMember(t, svc, "B", w.ID)

	amounts := []int64{2000, 1, 999, 15050, 300}
	var sum int64
	var wg sync.WaitGroup
	for i, amt := range amounts {
		sum += amt
		member := a.ID
		if i%2 == 1 {
			member = b.ID
		}
		wg.Add(1)
		go func(memberID string, amt int64) {
			defer wg.Done()
			if _, err := svc.CreateExpense(ctx, memberID, "x", cents(amt)); err != nil {
				t.Errorf("create expense: %v", err)
			}
		}(member, amt)
	}
	wg.Wait()

	if got := workspaceTotal(t, svc, w.ID); got != sum {
		t.Fatalf("total %d, want %d", got, sum)
	}
}

func TestDeleteMissingExpenseLeavesTotals(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	w := mustWorkspace(t, svc, "w", 0)
	m := mustMember(t, svc, "A", w.ID)
	if _, err := svc.CreateExpense(ctx, m.ID, "x", cents(700)); err != nil {
		t.Fatalf("create: %v", err)
	}
	before := len(pub.types())

	err := svc.DeleteExpense(ctx, "does-not-exist")
	if !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := workspaceTotal(t, svc, w.ID); got != 700 {
		t.Fatalf("total changed: %d", got)
	}
	if len(pub.types()) != before {
		t.Fatalf("no event expected for a failed delete")
	}
}

func TestSetMemberTotalOverwrites(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	m := mustMember(t, svc, "A", "")

	if _, err := svc.SetMemberTotal(ctx, m.ID, cents(5000)); err != nil {
		t.Fatalf("first set: %v", err)
	}
	got, err := svc.SetMemberTotal(ctx, m.ID, cents(1000))
	if err != nil {
		t.Fatalf("second set: %v", err)
	}
	if got.TotalExpenses.Cents != 1000 {
		t.Fatalf("expected overwrite to 1000, got %d", got.TotalExpenses.Cents)
	}

	if _, err := svc.SetMemberTotal(ctx, "missing", cents(1)); !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteMemberOrphansExpenses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	w := mustWorkspace(t, svc, "w", 0)
	m := mustMember(t, svc, "A", w.ID)
	keep := mustMember(t, svc, "B", w.ID)
	e, err := svc.CreateExpense(ctx, m.ID, "Lunch", cents(2000))
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}

	if err := svc.DeleteMember(ctx, w.ID, m.ID); err != nil {
		t.Fatalf("delete member: %v", err)
	}

	ws, _ := svc.store.GetWorkspace(ctx, w.ID)
	if ws.HasMember(m.ID) || !ws.HasMember(keep.ID) {
		t.Fatalf("member list after delete: %v", ws.Members)
	}
	if ws.TotalExpenses.Cents != 2000 {
		t.Fatalf("total must not change on member delete: %d", ws.TotalExpenses.Cents)
	}
	if _, err := svc.store.GetExpense(ctx, e.ID); err != nil {
		t.Fatalf("orphaned expense should remain: %v", err)
	}

	// The orphan can still be deleted; the total is then left alone because
	// its member no longer resolves.
	if err := svc.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("delete orphan: %v", err)
	}
	if got := workspaceTotal(t, svc, w.ID); got != 2000 {
		t.Fatalf("orphan delete changed total: %d", got)
	}
}

func TestDeleteMemberToleratesMissingRecords(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.DeleteMember(context.Background(), "no-workspace", "no-member"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestCreateMemberWithoutWorkspace(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	m := mustMember(t, svc, "Solo", "")
	e, err := svc.CreateExpense(ctx, m.ID, "x", cents(100))
	if err != nil {
		t.Fatalf("expense for member without workspace: %v", err)
	}
	if e.ID == "" {
		t.Fatalf("expense should be stored")
	}

	// Dangling workspace reference is kept as-is.
	d, err := svc.CreateMember(ctx, core.Member{Name: "D", ContactNumber: "1", WorkspaceID: "ghost"})
	if err != nil || d.WorkspaceID != "ghost" {
		t.Fatalf("dangling reference: %+v err=%v", d, err)
	}
	members, _ := svc.ListWorkspaceMembers(ctx, "ghost")
	if len(members) != 1 {
		t.Fatalf("filter by dangling reference: %d", len(members))
	}
}

func TestCreateValidationErrors(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateWorkspace(ctx, "", cents(1)); !core.IsValidation(err) {
		t.Errorf("workspace: %v", err)
	}
	if _, err := svc.CreateMember(ctx, core.Member{Name: "A"}); !core.IsValidation(err) {
		t.Errorf("member: %v", err)
	}
	if _, err := svc.CreateExpense(ctx, "m", "", cents(1)); !core.IsValidation(err) {
		t.Errorf("expense: %v", err)
	}
	if len(pub.types()) != 0 {
		t.Errorf("no events expected, got %v", pub.types())
	}
}

func TestListWorkspacesPopulatesMembers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	w := mustWorkspace(t, svc, "w", 5000)
	a := mustMember(t, svc, "A", w.ID)
	b := mustMember(t, svc, "B", w.ID)
	if err := svc.store.DeleteMember(ctx, a.ID); err != nil {
		t.Fatalf("raw delete: %v", err)
	}

	list, err := svc.ListWorkspaces(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := list[0]
	if len(got.Members) != 2 {
		t.Fatalf("raw id list should still hold the dangling id: %v", got.Members)
	}
	if len(got.MemberRecords) != 1 || got.MemberRecords[0].ID != b.ID {
		t.Fatalf("populated members: %+v", got.MemberRecords)
	}
}

func TestWorkspaceSummaryAvailable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	w := mustWorkspace(t, svc, "Trip", 1000)
	m := mustMember(t, svc, "A", w.ID)
	if _, err := svc.CreateExpense(ctx, m.ID, "Hotel", cents(1500)); err != nil {
		t.Fatalf("create: %v", err)
	}

	sum, err := svc.WorkspaceSummary(ctx)
	if err != nil || len(sum) != 1 {
		t.Fatalf("summary: %v %v", sum, err)
	}
	if sum[0].Available.Cents != -500 || sum[0].TotalExpenses.Cents != 1500 {
		t.Fatalf("unexpected summary: %+v", sum[0])
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewBudgetService(memory.New(), pub, nil, quietLogger())
	defer svc.Close()

	if _, err := svc.CreateWorkspace(context.Background(), "w", cents(1)); err != nil {
		t.Fatalf("publish failure leaked into request: %v", err)
	}
	if len(pub.types()) != 1 {
		t.Fatalf("publish should have been attempted")
	}
}

func TestIncrementFailureIsNotRolledBack(t *testing.T) {
	mem := memory.New()
	svc := NewBudgetService(failingIncrementStore{Store: mem}, nil, nil, quietLogger())
	ctx := context.Background()

	w := core.Workspace{Name: "w"}
	if err := mem.CreateWorkspace(ctx, &w); err != nil {
		t.Fatalf("seed workspace: %v", err)
	}
	m := core.Member{Name: "A", ContactNumber: "1", WorkspaceID: w.ID}
	if err := mem.CreateMember(ctx, &m); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	e, err := svc.CreateExpense(ctx, m.ID, "x", cents(100))
	if !errors.Is(err, core.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, getErr := mem.GetExpense(ctx, e.ID); getErr != nil {
		t.Fatalf("expense should stay persisted after failed increment: %v", getErr)
	}
}

func TestCloseWithNilPublisher(t *testing.T) {
	svc := NewBudgetService(memory.New(), nil, nil, quietLogger())
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
