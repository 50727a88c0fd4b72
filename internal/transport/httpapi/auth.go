package httpapi

import (
	"net/http"

	"mediahub.app/sessioncore/internal/auth"
)

func (s *Server) routeAuth() {
	s.mux.HandleFunc("POST /Auth/AuthenticateByName", s.handleAuthenticate)
	s.mux.HandleFunc("POST /Auth/Logout", s.handleLogout)
	s.mux.HandleFunc("POST /Auth/Users/{id}/RevokeTokens", s.handleRevokeUserTokens)
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req auth.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	req.RemoteEndPoint = r.RemoteAddr
	result, err := s.authenticator.AuthenticateNewSession(r.Context(), req)
	if writeErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Access-Token")
	if token == "" {
		http.Error(w, "missing X-Access-Token header", http.StatusBadRequest)
		return
	}
	if writeErr(w, s.authenticator.Logout(r.Context(), token)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeUserTokens(w http.ResponseWriter, r *http.Request) {
	current := r.Header.Get("X-Access-Token")
	if writeErr(w, s.authenticator.RevokeUserTokens(r.Context(), r.PathValue("id"), current)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
