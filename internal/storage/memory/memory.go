// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"teamspend/internal/core"
	"teamspend/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps every record in insertion order behind a single mutex, so each
// method is atomic with respect to the others.
type Store struct {
	mu         sync.Mutex
	workspaces []core.Workspace
	members    []core.Member
	expenses   []core.Expense
	closed     bool
}

func New() *Store {
	return &Store{}
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &core.StoreError{Op: "ping", Err: errClosed}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// --- workspaces ---

func (s *Store) CreateWorkspace(_ context.Context, w *core.Workspace) error {
	if err := w.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w.ID = uuid.NewString()
	w.TotalExpenses = core.Money{}
	w.Members = []string{}
	s.workspaces = append(s.workspaces, cloneWorkspace(*w))
	return nil
}

func (s *Store) GetWorkspace(_ context.Context, id string) (core.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.workspaceIndex(id)
	if i < 0 {
		return core.Workspace{}, core.NewNotFound(core.EntityWorkspace, id)
	}
	return cloneWorkspace(s.workspaces[i]), nil
}

func (s *Store) ListWorkspaces(_ context.Context) ([]core.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Workspace, 0, len(s.workspaces))
	for _, w := range s.workspaces {
		out = append(out, cloneWorkspace(w))
	}
	return out, nil
}

func (s *Store) IncrementWorkspaceTotal(_ context.Context, id string, delta core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.workspaceIndex(id)
	if i < 0 {
		return core.NewNotFound(core.EntityWorkspace, id)
	}
	s.workspaces[i].TotalExpenses = s.workspaces[i].TotalExpenses.Add(delta)
	return nil
}

func (s *Store) PushWorkspaceMember(_ context.Context, workspaceID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.workspaceIndex(workspaceID)
	if i < 0 {
		return core.NewNotFound(core.EntityWorkspace, workspaceID)
	}
	s.workspaces[i].Members = append(s.workspaces[i].Members, memberID)
	return nil
}

func (s *Store) PullWorkspaceMember(_ context.Context, workspaceID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.workspaceIndex(workspaceID)
	if i < 0 {
		return core.NewNotFound(core.EntityWorkspace, workspaceID)
	}
	s.workspaces[i].Members = slices.DeleteFunc(s.workspaces[i].Members, func(id string) bool {
		return id == memberID
	})
	return nil
}

// --- members ---

func (s *Store) CreateMember(_ context.Context, m *core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = uuid.NewString()
	m.TotalExpenses = core.Money{}
	s.members = append(s.members, *m)
	return nil
}

func (s *Store) GetMember(_ context.Context, id string) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.memberIndex(id)
	if i < 0 {
		return core.Member{}, core.NewNotFound(core.EntityMember, id)
	}
	return s.members[i], nil
}

func (s *Store) ListMembers(_ context.Context, f storage.MemberFilter) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Member{}
	for _, m := range s.members {
		if f.WorkspaceID != "" && m.WorkspaceID != f.WorkspaceID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) SetMemberTotal(_ context.Context, id string, total core.Money) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.memberIndex(id)
	if i < 0 {
		return core.Member{}, core.NewNotFound(core.EntityMember, id)
	}
	s.members[i].TotalExpenses = total
	return s.members[i], nil
}

func (s *Store) DeleteMember(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.memberIndex(id)
	if i < 0 {
		return core.NewNotFound(core.EntityMember, id)
	}
	s.members = slices.Delete(s.members, i, i+1)
	return nil
}

// --- expenses ---

func (s *Store) CreateExpense(_ context.Context, e *core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = uuid.NewString()
	s.expenses = append(s.expenses, *e)
	return nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.expenseIndex(id)
	if i < 0 {
		return core.Expense{}, core.NewNotFound(core.EntityExpense, id)
	}
	return s.expenses[i], nil
}

func (s *Store) ListExpenses(_ context.Context, f storage.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Expense{}
	for _, e := range s.expenses {
		if f.MemberID != "" && e.MemberID != f.MemberID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.expenseIndex(id)
	if i < 0 {
		return core.NewNotFound(core.EntityExpense, id)
	}
	s.expenses = slices.Delete(s.expenses, i, i+1)
	return nil
}

func (s *Store) SumExpensesByWorkspace(_ context.Context, workspaceID string) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum core.Money
	for _, e := range s.expenses {
		i := s.memberIndex(e.MemberID)
		if i < 0 || s.members[i].WorkspaceID != workspaceID {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}

// --- helpers (callers hold mu) ---

func (s *Store) workspaceIndex(id string) int {
	return slices.IndexFunc(s.workspaces, func(w core.Workspace) bool { return w.ID == id })
}

func (s *Store) memberIndex(id string) int {
	return slices.IndexFunc(s.members, func(m core.Member) bool { return m.ID == id })
}

func (s *Store) expenseIndex(id string) int {
	return slices.IndexFunc(s.expenses, func(e core.Expense) bool { return e.ID == id })
}

func cloneWorkspace(w core.Workspace) core.Workspace {
	w.Members = append([]string{}, w.Members...)
	return w
}
