package httpapi

import (
	"encoding/json"
	"net/http"

	"mediahub.app/sessioncore/internal/core"
)

func (s *Server) routeSessions() {
	s.mux.HandleFunc("GET /Sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /Sessions/Activity", s.handleLogActivity)
	s.mux.HandleFunc("DELETE /Sessions/{id}", s.handleEndSession)
	s.mux.HandleFunc("POST /Sessions/{id}/Playing", s.handlePlaybackStart)
	s.mux.HandleFunc("POST /Sessions/{id}/Playing/Progress", s.handlePlaybackProgress)
	s.mux.HandleFunc("POST /Sessions/{id}/Playing/Stopped", s.handlePlaybackStopped)
	s.mux.HandleFunc("POST /Sessions/{id}/Playing/PlayRequest", s.handleSendPlayCommand)
	s.mux.HandleFunc("POST /Sessions/{id}/Playstate", s.handleSendPlaystateCommand)
	s.mux.HandleFunc("POST /Sessions/{id}/Message", s.handleSendMessageCommand)
	s.mux.HandleFunc("POST /Sessions/{id}/Command", s.handleSendGeneralCommand)
	s.mux.HandleFunc("POST /Sessions/{id}/Viewing", s.handleReportNowViewing)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Sessions())
}

// activityRequest mirrors LogSessionActivity's parameters plus an optional
// associated user; an empty UserID logs activity for an anonymous session.
type activityRequest struct {
	AppName        string
	AppVersion     string
	DeviceID       string
	DeviceName     string
	RemoteEndPoint string
	UserID         string
	UserName       string
}

func (s *Server) handleLogActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var user *core.User
	if req.UserID != "" {
		user = &core.User{ID: req.UserID, Name: req.UserName}
	}
	sess, err := s.manager.LogSessionActivity(r.Context(), req.AppName, req.AppVersion, req.DeviceID, req.DeviceName, req.RemoteEndPoint, user)
	if writeErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	err := s.manager.ReportSessionEnded(r.Context(), r.PathValue("id"))
	if writeErr(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlaybackStart(w http.ResponseWriter, r *http.Request) {
	var info core.PlaybackStartInfo
	if !decodeJSON(w, r, &info) {
		return
	}
	info.SessionID = r.PathValue("id")
	if writeErr(w, s.manager.OnPlaybackStart(r.Context(), info)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlaybackProgress(w http.ResponseWriter, r *http.Request) {
	var info core.PlaybackProgressInfo
	if !decodeJSON(w, r, &info) {
		return
	}
	info.SessionID = r.PathValue("id")
	isAutomated := r.URL.Query().Get("isAutomated") == "true"
	if writeErr(w, s.manager.OnPlaybackProgress(r.Context(), info, isAutomated)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlaybackStopped(w http.ResponseWriter, r *http.Request) {
	var info core.PlaybackStopInfo
	if !decodeJSON(w, r, &info) {
		return
	}
	info.SessionID = r.PathValue("id")
	if writeErr(w, s.manager.OnPlaybackStopped(r.Context(), info)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendPlayCommand(w http.ResponseWriter, r *http.Request) {
	var req core.PlayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.dispatcher.SendPlayCommand(r.Context(), r.URL.Query().Get("controllingSessionId"), r.PathValue("id"), req)
	if writeErr(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendPlaystateCommand(w http.ResponseWriter, r *http.Request) {
	var req core.PlaystateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.dispatcher.SendPlaystateCommand(r.Context(), r.URL.Query().Get("controllingSessionId"), r.PathValue("id"), req)
	if writeErr(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessageCommand(w http.ResponseWriter, r *http.Request) {
	var req core.MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.dispatcher.SendMessageCommand(r.Context(), r.URL.Query().Get("controllingSessionId"), r.PathValue("id"), req)
	if writeErr(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendGeneralCommand(w http.ResponseWriter, r *http.Request) {
	var cmd core.GeneralCommand
	if !decodeJSON(w, r, &cmd) {
		return
	}
	err := s.dispatcher.SendGeneralCommand(r.Context(), r.URL.Query().Get("controllingSessionId"), r.PathValue("id"), cmd)
	if writeErr(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReportNowViewing(w http.ResponseWriter, r *http.Request) {
	var req struct{ ItemID string }
	if !decodeJSON(w, r, &req) {
		return
	}
	if writeErr(w, s.dispatcher.ReportNowViewingItem(r.Context(), r.PathValue("id"), req.ItemID)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeErr maps a core.Error kind onto an HTTP status and writes the
// response if err is non-nil, returning whether it did so.
func writeErr(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	status := http.StatusInternalServerError
	switch core.KindOf(err) {
	case core.KindInvalidArgument, core.KindOutOfRange:
		status = http.StatusBadRequest
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindSecurityDenied:
		status = http.StatusForbidden
	case core.KindDisposed:
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
	return true
}
