// Package wsctrl implements the default SessionController: a bidirectional
// JSON envelope pushed over a gorilla/websocket connection, serving the same
// one-command-at-a-time dispatch role as the other transport controllers but
// over a plain message-bus connection instead of a device-specific protocol.
package wsctrl

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/ports"
)

const writeTimeout = 5 * time.Second

// envelope is the wire message every command/notification is lowered to.
type envelope struct {
	MessageType string `json:"MessageType"`
	Data        any    `json:"Data,omitempty"`
}

// Controller is a SessionController bound to one live websocket connection.
// Every outward call is serialized behind writeMu, since *websocket.Conn
// permits at most one concurrent writer.
type Controller struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	live     bool
	lastSeen time.Time
}

// New wraps an upgraded websocket connection as a SessionController.
func New(id string, conn *websocket.Conn, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{id: id, conn: conn, logger: logger, live: true, lastSeen: time.Now()}
}

func (c *Controller) ID() string { return c.id }

// OnActivity records that the client reported activity through a channel
// other than the websocket itself (e.g. an HTTP heartbeat).
func (c *Controller) OnActivity() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// IsLive reports whether the underlying connection is still considered
// open; the read loop in the transport's HTTP upgrade handler (not this
// package) calls Dispose, which marks it closed, once the connection drops.
func (c *Controller) IsLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// MarkClosed flips the controller permanently inactive — called by whatever
// owns the read loop once the connection errors or closes.
func (c *Controller) MarkClosed() {
	c.mu.Lock()
	c.live = false
	c.mu.Unlock()
}

func (c *Controller) send(msgType string, data any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	payload, err := json.Marshal(envelope{MessageType: msgType, Data: data})
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Controller) SendGeneralCommand(_ context.Context, cmd core.GeneralCommand) error {
	return c.send("GeneralCommand", cmd)
}

func (c *Controller) SendPlaystateCommand(_ context.Context, req core.PlaystateRequest) error {
	return c.send("Playstate", req)
}

func (c *Controller) SendPlayCommand(_ context.Context, req core.PlayRequest) error {
	return c.send("Play", req)
}

func (c *Controller) SendMessage(_ context.Context, name string, data any) error {
	return c.send(name, data)
}

func (c *Controller) SendPlaybackStartNotification(_ context.Context, dto core.SessionDto) error {
	return c.send("PlaybackStart", dto)
}

func (c *Controller) SendPlaybackStoppedNotification(_ context.Context, dto core.SessionDto) error {
	return c.send("PlaybackStopped", dto)
}

func (c *Controller) SendSessionEndedNotification(_ context.Context, dto core.SessionDto) error {
	return c.send("SessionEnded", dto)
}

func (c *Controller) SendServerShutdownNotification(_ context.Context) error {
	return c.send("ServerShuttingDown", nil)
}

func (c *Controller) SendServerRestartNotification(_ context.Context) error {
	return c.send("ServerRestarting", nil)
}

func (c *Controller) SendRestartRequiredNotification(_ context.Context) error {
	return c.send("RestartRequired", nil)
}

func (c *Controller) Dispose() error {
	c.MarkClosed()
	return c.conn.Close()
}

var _ ports.SessionController = (*Controller)(nil)
