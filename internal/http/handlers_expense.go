package http

import (
	"net/http"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, msgAddExpense, "")
		return
	}

	e, err := s.svc.CreateExpense(r.Context(), r.PathValue("memberId"), sanitizeInput(req.Description), req.Amount)
	if err != nil {
		respondError(w, r, err, msgAddExpense, "")
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(e))
}

func (s *Server) handleListMemberExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.svc.ListMemberExpenses(r.Context(), r.PathValue("memberId"))
	if err != nil {
		respondError(w, r, err, msgFetchExpenses, "")
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err, msgDeleteExpense, msgExpenseNotFound)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgExpenseDeleted})
}
