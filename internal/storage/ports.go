// Package storage defines the entity store used by the budget services and
// its SQLite implementation.
package storage

import (
	"context"

	"teamspend/internal/core"
)

type (
	// MemberFilter restricts ListMembers to one workspace. The zero value
	// lists every member.
	MemberFilter struct {
		WorkspaceID string
	}

	// ExpenseFilter restricts ListExpenses to one member. The zero value
	// lists every expense.
	ExpenseFilter struct {
		MemberID string
	}

	WorkspaceStore interface {
		// CreateWorkspace assigns an id, persists w and updates it in place.
		CreateWorkspace(ctx context.Context, w *core.Workspace) error
		GetWorkspace(ctx context.Context, id string) (core.Workspace, error)
		// ListWorkspaces returns workspaces in insertion order.
		ListWorkspaces(ctx context.Context) ([]core.Workspace, error)
		// IncrementWorkspaceTotal adds delta to totalExpenses as a single
		// atomic store operation. delta may be negative.
		IncrementWorkspaceTotal(ctx context.Context, id string, delta core.Money) error
		// PushWorkspaceMember appends memberID to the workspace member list.
		PushWorkspaceMember(ctx context.Context, workspaceID, memberID string) error
		// PullWorkspaceMember removes every occurrence of memberID from the
		// workspace member list.
		PullWorkspaceMember(ctx context.Context, workspaceID, memberID string) error
	}

	MemberStore interface {
		CreateMember(ctx context.Context, m *core.Member) error
		GetMember(ctx context.Context, id string) (core.Member, error)
		ListMembers(ctx context.Context, f MemberFilter) ([]core.Member, error)
		// SetMemberTotal overwrites totalExpenses and returns the updated record.
		SetMemberTotal(ctx context.Context, id string, total core.Money) (core.Member, error)
		// DeleteMember removes the member only; expenses are not cascaded.
		DeleteMember(ctx context.Context, id string) error
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e *core.Expense) error
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error)
		DeleteExpense(ctx context.Context, id string) error
		// SumExpensesByWorkspace recomputes the total of expenses whose member
		// currently references workspaceID. Used only for auditing.
		SumExpensesByWorkspace(ctx context.Context, workspaceID string) (core.Money, error)
	}

	// Store is the full entity store.
	Store interface {
		WorkspaceStore
		MemberStore
		ExpenseStore
		Ping(ctx context.Context) error
		Close() error
	}
)
