package http

import (
	"errors"
	"log/slog"
	"net/http"

	"teamspend/internal/auth"
	"teamspend/internal/log"
)

func (s *Server) loginEnabled() bool {
	return s.authn != nil && s.authn.Enabled() && s.tokens != nil
}

// handleLogin checks the shared credential and issues a bearer token. The
// token replaces the client-side "logged in" flag; the server keeps no state.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	if !s.loginEnabled() {
		writeError(w, http.StatusNotFound, msgLoginDisabled)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, msgLoginFailed, "")
		return
	}

	fields := log.NewFields().WithOperation(log.OpLogin).WithClientIP(s.detector.ExtractClientIP(r))
	fields[log.FieldUsername] = req.Username

	if err := s.authn.Authenticate(req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			fields[log.FieldErrorType] = log.ErrorTypeAuth
			logger.LogFields(ctx, slog.LevelWarn, "Login rejected", fields)
			writeError(w, http.StatusUnauthorized, msgBadCredentials)
			return
		}
		respondError(w, r, err, msgLoginFailed, "")
		return
	}

	token, session, err := s.tokens.Generate(req.Username)
	if err != nil {
		respondError(w, r, err, msgLoginFailed, "")
		return
	}

	logger.LogFields(ctx, slog.LevelInfo, "Login succeeded", fields)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		Username:  session.Username,
		ExpiresAt: session.ExpiresAt,
	})
}

// handleLogout is stateless: the client drops its token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLoggedOut})
}
