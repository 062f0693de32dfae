package http

import (
	"time"

	"teamspend/internal/core"
	"teamspend/internal/services"
)

// Request bodies. Field names follow the JSON the dashboard already sends.
type (
	createWorkspaceRequest struct {
		Name   string      `json:"name"`
		Amount *core.Money `json:"amount"`
	}

	createMemberRequest struct {
		Name          string `json:"name"`
		ContactNumber string `json:"contactNumber"`
		WorkspaceID   string `json:"workspaceId"`
	}

	createExpenseRequest struct {
		Description string     `json:"description"`
		Amount      core.Money `json:"amount"`
	}

	setMemberTotalRequest struct {
		TotalExpense *core.Money `json:"totalExpense"`
	}

	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
)

// Response bodies.
type (
	workspaceResponse struct {
		ID            string     `json:"_id"`
		Name          string     `json:"name"`
		Amount        core.Money `json:"amount"`
		TotalExpenses core.Money `json:"totalExpenses"`
		Available     core.Money `json:"available"`
		Members       []string   `json:"members"`
	}

	populatedWorkspaceResponse struct {
		ID            string           `json:"_id"`
		Name          string           `json:"name"`
		Amount        core.Money       `json:"amount"`
		TotalExpenses core.Money       `json:"totalExpenses"`
		Available     core.Money       `json:"available"`
		Members       []memberResponse `json:"members"`
	}

	workspaceSummaryResponse struct {
		ID            string     `json:"_id"`
		Name          string     `json:"name"`
		Amount        core.Money `json:"amount"`
		TotalExpenses core.Money `json:"totalExpenses"`
		Available     core.Money `json:"available"`
	}

	memberResponse struct {
		ID            string     `json:"_id"`
		Name          string     `json:"name"`
		ContactNumber string     `json:"contactNumber"`
		WorkspaceID   string     `json:"workspaceId,omitempty"`
		TotalExpenses core.Money `json:"totalExpenses"`
	}

	expenseResponse struct {
		ID          string     `json:"_id"`
		Description string     `json:"description"`
		Amount      core.Money `json:"amount"`
		MemberID    string     `json:"memberId"`
	}

	loginResponse struct {
		Token     string    `json:"token"`
		Username  string    `json:"username"`
		ExpiresAt time.Time `json:"expiresAt"`
	}

	messageResponse struct {
		Message string `json:"message"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func toWorkspaceResponse(w core.Workspace) workspaceResponse {
	members := w.Members
	if members == nil {
		members = []string{}
	}
	return workspaceResponse{
		ID:            w.ID,
		Name:          w.Name,
		Amount:        w.Amount,
		TotalExpenses: w.TotalExpenses,
		Available:     w.Available(),
		Members:       members,
	}
}

func toPopulatedWorkspaceResponse(w services.PopulatedWorkspace) populatedWorkspaceResponse {
	return populatedWorkspaceResponse{
		ID:            w.ID,
		Name:          w.Name,
		Amount:        w.Amount,
		TotalExpenses: w.TotalExpenses,
		Available:     w.Available(),
		Members:       toMemberResponses(w.MemberRecords),
	}
}

func toMemberResponse(m core.Member) memberResponse {
	return memberResponse{
		ID:            m.ID,
		Name:          m.Name,
		ContactNumber: m.ContactNumber,
		WorkspaceID:   m.WorkspaceID,
		TotalExpenses: m.TotalExpenses,
	}
}

func toMemberResponses(ms []core.Member) []memberResponse {
	out := make([]memberResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMemberResponse(m))
	}
	return out
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Description: e.Description,
		Amount:      e.Amount,
		MemberID:    e.MemberID,
	}
}
