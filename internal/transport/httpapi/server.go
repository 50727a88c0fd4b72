// Package httpapi is the HTTP surface binding the websocket transport, the
// remote-control dispatcher, and the authenticator to the session core: a
// websocket upgrade endpoint, JSON command/activity/auth routes, and a
// health check.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mediahub.app/sessioncore/internal/auth"
	"mediahub.app/sessioncore/internal/controllers/wsctrl"
	"mediahub.app/sessioncore/internal/remotecontrol"
	"mediahub.app/sessioncore/internal/sessioncore"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const pingInterval = 30 * time.Second

// Config bundles the collaborators the HTTP surface dispatches into.
type Config struct {
	Factory       *wsctrl.Factory
	Manager       *sessioncore.Manager
	Dispatcher    *remotecontrol.Dispatcher
	Authenticator *auth.Authenticator
	Logger        *slog.Logger
}

// Server wires the websocket upgrade handler, the session/playback/
// remote-control/auth JSON routes, and a health endpoint.
type Server struct {
	factory       *wsctrl.Factory
	manager       *sessioncore.Manager
	dispatcher    *remotecontrol.Dispatcher
	authenticator *auth.Authenticator
	logger        *slog.Logger
	mux           *http.ServeMux
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		factory:       cfg.Factory,
		manager:       cfg.Manager,
		dispatcher:    cfg.Dispatcher,
		authenticator: cfg.Authenticator,
		logger:        cfg.Logger,
		mux:           http.NewServeMux(),
	}
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("GET /Sessions/Ws", s.handleUpgrade)
	s.routeSessions()
	s.routeAuth()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleUpgrade registers one websocket connection as the SessionController
// for the session id named in the query string, then blocks reading frames
// until the connection closes — every inbound frame is treated as an
// activity signal, not a command the server interprets.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws_upgrade_failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		return
	}

	ctrl := wsctrl.New(sessionID, conn, s.logger)
	s.factory.Register(sessionID, ctrl)
	s.logger.Info("ws_session_attached", slog.String("session_id", sessionID))

	defer func() {
		ctrl.Dispose()
		s.factory.Unregister(sessionID)
		s.logger.Info("ws_session_detached", slog.String("session_id", sessionID))
	}()

	conn.SetReadDeadline(time.Now().Add(pingInterval * 2))
	conn.SetPongHandler(func(string) error {
		ctrl.OnActivity()
		conn.SetReadDeadline(time.Now().Add(pingInterval * 2))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		ctrl.OnActivity()
	}
}
