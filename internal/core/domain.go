package core

import (
	"strings"
)

const (
	EntityWorkspace = "workspace"
	EntityMember    = "member"
	EntityExpense   = "expense"
)

type (
	// Workspace is a budget container. TotalExpenses is a denormalized running
	// total maintained incrementally by the aggregation updater; Members is the
	// ordered list of member ids pushed on member creation and pulled on
	// member deletion.
	Workspace struct {
		ID            string
		Name          string
		Amount        Money
		TotalExpenses Money
		Members       []string
	}

	// Member belongs to at most one workspace. TotalExpenses is a snapshot
	// supplied by the client and is never derived from expenses.
	Member struct {
		ID            string
		Name          string
		ContactNumber string
		WorkspaceID   string // empty when created without a workspace
		TotalExpenses Money
	}

	Expense struct {
		ID          string
		Description string
		Amount      Money
		MemberID    string
	}
)

const maxTextLength = 200

// Available returns the budget still unspent. It goes negative when the
// workspace is over budget.
func (w Workspace) Available() Money {
	return w.Amount.Sub(w.TotalExpenses)
}

// HasMember reports whether id is in the workspace member list.
func (w Workspace) HasMember(id string) bool {
	for _, m := range w.Members {
		if m == id {
			return true
		}
	}
	return false
}

func (w Workspace) Validate() error {
	if err := requireText("name", w.Name); err != nil {
		return err
	}
	if w.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	return nil
}

func (m Member) Validate() error {
	if err := requireText("name", m.Name); err != nil {
		return err
	}
	if err := requireText("contactNumber", m.ContactNumber); err != nil {
		return err
	}
	return nil
}

func (e Expense) Validate() error {
	if err := requireText("description", e.Description); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Reason: err.Error()}
	}
	if strings.TrimSpace(e.MemberID) == "" {
		return &ValidationError{Field: "memberId", Reason: "is required"}
	}
	return nil
}

func requireText(field, value string) error {
	if len(strings.TrimSpace(value)) == 0 {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if len(value) > maxTextLength {
		return &ValidationError{Field: field, Reason: "too long (max 200 characters)"}
	}
	return nil
}
