package http

import (
	"net/http"

	"teamspend/internal/core"
)

// handleCreateMember stores the member and appends it to its workspace's
// member list. workspaceId is optional.
func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, msgAddMember, "")
		return
	}

	m, err := s.svc.CreateMember(r.Context(), core.Member{
		Name:          sanitizeInput(req.Name),
		ContactNumber: sanitizeInput(req.ContactNumber),
		WorkspaceID:   sanitizeInput(req.WorkspaceID),
	})
	if err != nil {
		respondError(w, r, err, msgAddMember, "")
		return
	}
	writeJSON(w, http.StatusCreated, toMemberResponse(m))
}

// handleDeleteMember always answers 200 once both steps ran, even when the
// member or the workspace did not exist.
func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	err := s.svc.DeleteMember(r.Context(), r.PathValue("workspaceId"), r.PathValue("memberId"))
	if err != nil {
		respondError(w, r, err, msgDeleteMember, "")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgMemberDeleted})
}

// handleSetMemberTotal overwrites the member's totalExpenses with the value
// computed by the client.
func (s *Server) handleSetMemberTotal(w http.ResponseWriter, r *http.Request) {
	var req setMemberTotalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, msgUpdateTotal, msgMemberNotFound)
		return
	}
	if req.TotalExpense == nil {
		respondError(w, r, &core.ValidationError{Field: "totalExpense", Reason: "is required"}, msgUpdateTotal, "")
		return
	}

	m, err := s.svc.SetMemberTotal(r.Context(), r.PathValue("memberId"), *req.TotalExpense)
	if err != nil {
		respondError(w, r, err, msgUpdateTotal, msgMemberNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toMemberResponse(m))
}
