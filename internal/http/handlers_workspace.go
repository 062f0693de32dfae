package http

import (
	"net/http"

	"teamspend/internal/core"
)

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, msgAddWorkspace, "")
		return
	}
	if req.Amount == nil {
		respondError(w, r, &core.ValidationError{Field: "amount", Reason: "is required"}, msgAddWorkspace, "")
		return
	}

	ws, err := s.svc.CreateWorkspace(r.Context(), sanitizeInput(req.Name), *req.Amount)
	if err != nil {
		respondError(w, r, err, msgAddWorkspace, "")
		return
	}
	writeJSON(w, http.StatusCreated, toWorkspaceResponse(ws))
}

// handleListWorkspaces returns every workspace with its members populated.
func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListWorkspaces(r.Context())
	if err != nil {
		respondError(w, r, err, msgFetchWorkspaces, "")
		return
	}

	out := make([]populatedWorkspaceResponse, 0, len(list))
	for _, ws := range list {
		out = append(out, toPopulatedWorkspaceResponse(ws))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWorkspaceSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.WorkspaceSummary(r.Context())
	if err != nil {
		respondError(w, r, err, msgFetchSummary, "")
		return
	}

	out := make([]workspaceSummaryResponse, 0, len(summary))
	for _, ws := range summary {
		out = append(out, workspaceSummaryResponse{
			ID:            ws.ID,
			Name:          ws.Name,
			Amount:        ws.Amount,
			TotalExpenses: ws.TotalExpenses,
			Available:     ws.Available,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListWorkspaceMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.ListWorkspaceMembers(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err, msgFetchMembers, "")
		return
	}
	writeJSON(w, http.StatusOK, toMemberResponses(members))
}
