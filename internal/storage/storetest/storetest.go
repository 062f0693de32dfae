// Package storetest holds the behaviour every storage.Store implementation
// must share. Implementations call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"teamspend/internal/core"
	"teamspend/internal/storage"
)

// Factory returns a fresh, empty store. Run closes it when each subtest ends.
type Factory func(t *testing.T) storage.Store

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateAssignsIDsAndZeroTotals", testCreateAssignsIDs},
		{"CreateRejectsInvalid", testCreateRejectsInvalid},
		{"ListPreservesInsertionOrder", testListOrder},
		{"IncrementWorkspaceTotal", testIncrementTotal},
		{"ConcurrentIncrements", testConcurrentIncrements},
		{"PushPullMembers", testPushPull},
		{"MemberFilterAndSetTotal", testMemberFilterAndSetTotal},
		{"DeleteLeavesExpenses", testDeleteMemberLeavesExpenses},
		{"ExpenseFilterAndDelete", testExpenseFilterAndDelete},
		{"SumExpensesByWorkspace", testSumExpenses},
		{"NotFound", testNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tc.fn(t, s)
		})
	}
}

func mustWorkspace(t *testing.T, s storage.Store, name string, cents int64) core.Workspace {
	t.Helper()
	w := core.Workspace{Name: name, Amount: core.Money{Cents: cents}}
	if err := s.CreateWorkspace(context.Background(), &w); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return w
}

func mustMember(t *testing.T, s storage.Store, name, workspaceID string) core.Member {
	t.Helper()
	m := core.Member{Name: name, ContactNumber: "555-0100", WorkspaceID: workspaceID}
	if err := s.CreateMember(context.Background(), &m); err != nil {
		t.Fatalf("create member: %v", err)
	}
	return m
}

func mustExpense(t *testing.T, s storage.Store, desc string, cents int64, memberID string) core.Expense {
	t.Helper()
	e := core.Expense{Description: desc, Amount: core.Money{Cents: cents}, MemberID: memberID}
	if err := s.CreateExpense(context.Background(), &e); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return e
}

func testCreateAssignsIDs(t *testing.T, s storage.Store) {
	ctx := context.Background()
	w := core.Workspace{Name: "Trip", Amount: core.Money{Cents: 100000}, TotalExpenses: core.Money{Cents: 999}}
	if err := s.CreateWorkspace(ctx, &w); err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.ID == "" || !w.TotalExpenses.IsZero() || len(w.Members) != 0 {
		t.Fatalf("unexpected created workspace: %+v", w)
	}

	got, err := s.GetWorkspace(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Trip" || got.Amount.Cents != 100000 || !got.TotalExpenses.IsZero() {
		t.Fatalf("unexpected stored workspace: %+v", got)
	}
	if got.Members == nil {
		t.Fatalf("members should be an empty list, not nil")
	}

	m := core.Member{Name: "A", ContactNumber: "1", TotalExpenses: core.Money{Cents: 5}}
	if err := s.CreateMember(ctx, &m); err != nil {
		t.Fatalf("create member: %v", err)
	}
	if m.ID == "" || m.ID == w.ID || !m.TotalExpenses.IsZero() {
		t.Fatalf("unexpected created member: %+v", m)
	}
	gm, err := s.GetMember(ctx, m.ID)
	if err != nil || gm.WorkspaceID != "" {
		t.Fatalf("member without workspace: %+v err=%v", gm, err)
	}
}

func testCreateRejectsInvalid(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if err := s.CreateWorkspace(ctx, &core.Workspace{}); !core.IsValidation(err) {
		t.Fatalf("workspace: expected validation error, got %v", err)
	}
	if err := s.CreateMember(ctx, &core.Member{Name: "A"}); !core.IsValidation(err) {
		t.Fatalf("member: expected validation error, got %v", err)
	}
	if err := s.CreateExpense(ctx, &core.Expense{Description: "x", MemberID: "m"}); !core.IsValidation(err) {
		t.Fatalf("expense: expected validation error, got %v", err)
	}
	ws, _ := s.ListWorkspaces(ctx)
	if len(ws) != 0 {
		t.Fatalf("invalid workspace was stored: %+v", ws)
	}
}

func testListOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()
	names := []string{"c", "a", "b"}
	for _, n := range names {
		mustWorkspace(t, s, n, 0)
	}
	ws, err := s.ListWorkspaces(ctx)
	if err != nil || len(ws) != 3 {
		t.Fatalf("list: %v %v", ws, err)
	}
	for i, n := range names {
		if ws[i].Name != n {
			t.Fatalf("position %d: got %q want %q", i, ws[i].Name, n)
		}
	}
}

func testIncrementTotal(t *testing.T, s storage.Store) {
	ctx := context.Background()
	w := mustWorkspace(t, s, "w", 100000)
	for _, d := range []int64{2000, 1500, -2000} {
		if err := s.IncrementWorkspaceTotal(ctx, w.ID, core.Money{Cents: d}); err != nil {
			t.Fatalf("increment %d: %v", d, err)
		}
	}
	got, _ := s.GetWorkspace(ctx, w.ID)
	if got.TotalExpenses.Cents != 1500 {
		t.Fatalf("total: got %d want 1500", got.TotalExpenses.Cents)
	}
	// Negative totals are stored as-is.
	if err := s.IncrementWorkspaceTotal(ctx, w.ID, core.Money{Cents: -2000}); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	got, _ = s.GetWorkspace(ctx, w.ID)
	if got.TotalExpenses.Cents != -500 {
		t.Fatalf("total: got %d want -500", got.TotalExpenses.Cents)
	}
}

func testConcurrentIncrements(t *testing.T, s storage.Store) {
	ctx := context.Background()
	w := mustWorkspace(t, s, "w", 0)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.IncrementWorkspaceTotal(ctx, w.ID, core.Money{Cents: 100}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent increment: %v", err)
	}

	got, _ := s.GetWorkspace(ctx, w.ID)
	if got.TotalExpenses.Cents != n*100 {
		t.Fatalf("lost update: got %d want %d", got.TotalExpenses.Cents, n*100)
	}
}

func testPushPull(t *testing.T, s storage.Store) {
	ctx := context.Background()
	w := mustWorkspace(t, s, "w", 0)
	for _, id := range []string{"m1", "m2", "m1"} {
		if err := s.PushWorkspaceMember(ctx, w.ID, id); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	got, _ := s.GetWorkspace(ctx, w.ID)
	if len(got.Members) != 3 || got.Members[0] != "m1" || got.Members[1] != "m2" {
		t.Fatalf("members after push: %v", got.Members)
	}

	if err := s.PullWorkspaceMember(ctx, w.ID, "m1"); err != nil {
		t.Fatalf("pull: %v", err)
	}
	got, _ = s.GetWorkspace(ctx, w.ID)
	if len(got.Members) != 1 || got.Members[0] != "m2" {
		t.Fatalf("pull must remove every occurrence: %v", got.Members)
	}

	// Pulling an absent id is a no-op.
	if err := s.PullWorkspaceMember(ctx, w.ID, "zzz"); err != nil {
		t.Fatalf("pull absent: %v", err)
	}
	if err := s.PushWorkspaceMember(ctx, "missing", "m1"); !core.IsNotFound(err) {
		t.Fatalf("push to missing workspace: %v", err)
	}
	if err := s.PullWorkspaceMember(ctx, "missing", "m1"); !core.IsNotFound(err) {
		t.Fatalf("pull from missing workspace: %v", err)
	}
}

func testMemberFilterAndSetTotal(t *testing.T, s storage.Store) {
	ctx := context.Background()
	w1 := mustWorkspace(t, s, "w1", 0)
	w2 := mustWorkspace(t, s, "w2", 0)
	a := mustMember(t, s, "A", w1.ID)
	mustMember(t, s, "B", w2.ID)
	c := mustMember(t, s, "C", w1.ID)

	in1, err := s.ListMembers(ctx, storage.MemberFilter{WorkspaceID: w1.ID})
	if err != nil || len(in1) != 2 || in1[0].ID != a.ID || in1[1].ID != c.ID {
		t.Fatalf("filtered members: %+v err=%v", in1, err)
	}
	none, err := s.ListMembers(ctx, storage.MemberFilter{WorkspaceID: "nope"})
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("unknown workspace should list empty: %+v err=%v", none, err)
	}
	all, _ := s.ListMembers(ctx, storage.MemberFilter{})
	if len(all) != 3 {
		t.Fatalf("all members: %d", len(all))
	}

	updated, err := s.SetMemberTotal(ctx, a.ID, core.Money{Cents: 12345})
	if err != nil || updated.TotalExpenses.Cents != 12345 || updated.Name != "A" {
		t.Fatalf("set total: %+v err=%v", updated, err)
	}
	// The workspace total is independent of member totals.
	ws, _ := s.GetWorkspace(ctx, w1.ID)
	if !ws.TotalExpenses.IsZero() {
		t.Fatalf("workspace total changed: %d", ws.TotalExpenses.Cents)
	}
}

func testDeleteMemberLeavesExpenses(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := mustMember(t, s, "A", "")
	e := mustExpense(t, s, "Lunch", 2000, m.ID)

	if err := s.DeleteMember(ctx, m.ID); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	if _, err := s.GetMember(ctx, m.ID); !core.IsNotFound(err) {
		t.Fatalf("member should be gone: %v", err)
	}
	got, err := s.GetExpense(ctx, e.ID)
	if err != nil || got.MemberID != m.ID {
		t.Fatalf("expense must survive member deletion: %+v err=%v", got, err)
	}
}

func testExpenseFilterAndDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustMember(t, s, "A", "")
	b := mustMember(t, s, "B", "")
	e1 := mustExpense(t, s, "one", 100, a.ID)
	mustExpense(t, s, "two", 200, b.ID)
	e3 := mustExpense(t, s, "three", 300, a.ID)

	got, err := s.ListExpenses(ctx, storage.ExpenseFilter{MemberID: a.ID})
	if err != nil || len(got) != 2 || got[0].ID != e1.ID || got[1].ID != e3.ID {
		t.Fatalf("filtered expenses: %+v err=%v", got, err)
	}
	if got[1].Amount.Cents != 300 || got[1].Description != "three" {
		t.Fatalf("expense fields: %+v", got[1])
	}

	if err := s.DeleteExpense(ctx, e1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteExpense(ctx, e1.ID); !core.IsNotFound(err) {
		t.Fatalf("second delete: %v", err)
	}
	all, _ := s.ListExpenses(ctx, storage.ExpenseFilter{})
	if len(all) != 2 {
		t.Fatalf("remaining expenses: %d", len(all))
	}
}

func testSumExpenses(t *testing.T, s storage.Store) {
	ctx := context.Background()
	w := mustWorkspace(t, s, "w", 0)
	a := mustMember(t, s, "A", w.ID)
	b := mustMember(t, s, "B", "")
	mustExpense(t, s, "x", 2000, a.ID)
	mustExpense(t, s, "y", 1500, a.ID)
	mustExpense(t, s, "z", 999, b.ID)

	sum, err := s.SumExpensesByWorkspace(ctx, w.ID)
	if err != nil || sum.Cents != 3500 {
		t.Fatalf("sum: %d err=%v", sum.Cents, err)
	}
	empty, err := s.SumExpensesByWorkspace(ctx, "nope")
	if err != nil || !empty.IsZero() {
		t.Fatalf("sum of unknown workspace: %d err=%v", empty.Cents, err)
	}
}

func testNotFound(t *testing.T, s storage.Store) {
	ctx := context.Background()
	checks := []struct {
		name string
		err  error
	}{
		{"get workspace", func() error { _, err := s.GetWorkspace(ctx, "x"); return err }()},
		{"increment", s.IncrementWorkspaceTotal(ctx, "x", core.Money{Cents: 1})},
		{"get member", func() error { _, err := s.GetMember(ctx, "x"); return err }()},
		{"set total", func() error { _, err := s.SetMemberTotal(ctx, "x", core.Money{}); return err }()},
		{"delete member", s.DeleteMember(ctx, "x")},
		{"get expense", func() error { _, err := s.GetExpense(ctx, "x"); return err }()},
		{"delete expense", s.DeleteExpense(ctx, "x")},
	}
	for _, c := range checks {
		var nf *core.NotFoundError
		if !errors.As(c.err, &nf) || nf.ID != "x" {
			t.Fatalf("%s: expected NotFoundError, got %v", c.name, c.err)
		}
	}
}
