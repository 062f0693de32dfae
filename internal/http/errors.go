package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"teamspend/internal/core"
	"teamspend/internal/log"
)

const maxBodyBytes = 1 << 20 // 1MB

// Route failure messages. Clients match on these strings.
const (
	msgAddWorkspace     = "Error adding workspace"
	msgFetchWorkspaces  = "Error fetching workspaces"
	msgFetchSummary     = "Error fetching workspace summary"
	msgAddMember        = "Error adding member"
	msgFetchMembers     = "Error fetching members"
	msgDeleteMember     = "Error deleting member"
	msgUpdateTotal      = "Error updating total expense"
	msgAddExpense       = "Error adding expense"
	msgFetchExpenses    = "Error fetching expenses"
	msgDeleteExpense    = "Error deleting expense"
	msgExpenseNotFound  = "Expense not found"
	msgMemberNotFound   = "Member not found"
	msgInvalidBody      = "Invalid request body"
	msgRateLimited      = "Rate limit exceeded. Please try again later."
	msgRouteNotFound    = "Not found"
	msgLoginDisabled    = "Login is disabled"
	msgBadCredentials   = "Invalid username or password"
	msgLoginFailed      = "Error logging in"
	msgMemberDeleted    = "Member deleted successfully"
	msgExpenseDeleted   = "Expense deleted successfully"
	msgLoggedOut        = "Logged out"
	msgAPIRunning       = "API is running..."
	msgServiceNotReady  = "not ready"
	msgServiceReady     = "ready"
	msgServiceHealthy   = "ok"
	contentTypeJSON     = "application/json"
	contentTypeTextUTF8 = "text/plain; charset=utf-8"
)

// errMalformedBody marks a request body that is not the expected JSON
// document. It is the only client error reported as 400.
var errMalformedBody = errors.New("malformed request body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", contentTypeTextUTF8)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads a single JSON document into dst. Amount values that do not
// parse are reported as validation errors, everything else that does not
// decode as errMalformedBody.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			return &core.ValidationError{Field: "amount", Reason: "must be a number"}
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errMalformedBody)
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return nil
}

// respondError maps err to a status and writes {error}. A NotFound error is
// reported as 404 only when notFoundMsg is set for the route; every other
// failure, validation included, is a 500 carrying the route message.
func respondError(w http.ResponseWriter, r *http.Request, err error, message, notFoundMsg string) {
	status := http.StatusInternalServerError
	body := message
	level := slog.LevelError

	switch {
	case errors.Is(err, errMalformedBody):
		status, body, level = http.StatusBadRequest, msgInvalidBody, slog.LevelWarn
	case notFoundMsg != "" && core.IsNotFound(err):
		status, body, level = http.StatusNotFound, notFoundMsg, slog.LevelWarn
	case core.IsValidation(err):
		level = slog.LevelWarn
	}

	fields := log.NewFields().WithError(err)
	fields[log.FieldStatusCode] = status
	if core.IsValidation(err) {
		fields[log.FieldErrorType] = log.ErrorTypeValidation
	}
	log.FromContext(r.Context()).LogFields(r.Context(), level, message, fields)

	writeError(w, status, body)
}

func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
