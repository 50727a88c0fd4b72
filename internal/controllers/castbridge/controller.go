package castbridge

import (
	"context"
	"log/slog"
	"sync"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/ports"
)

// Controller is a SessionController bound to one Chromecast device, using a
// connect/load/stop flow against the generalized remote-control surface.
// Chromecast devices have no notification channel, so the Send*Notification
// methods are accepted as silent no-ops rather than rejected, a best-effort
// treatment of unsupported device features.
type Controller struct {
	id         string
	deviceAddr string
	client     CastClient
	logger     *slog.Logger

	mu        sync.Mutex
	connected bool
	live      bool
}

// New binds a session id to a device address via factory, connecting
// lazily on the first command.
func New(id, deviceAddr string, factory CastFactory, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client, err := factory.NewCastClient(deviceAddr)
	if err != nil {
		return nil, err
	}
	return &Controller{id: id, deviceAddr: deviceAddr, client: client, logger: logger, live: true}, nil
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) OnActivity() {}

func (c *Controller) IsLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

func (c *Controller) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	if err := c.client.Connect(); err != nil {
		return err
	}
	c.connected = true
	return nil
}

// SendPlayCommand loads the first resolved item id as a cast media URL.
// Chromecast has no native playlist concept, so only the head of the list
// is honored — callers wanting a queue should issue successive commands as
// items finish (a one-item-at-a-time cast model).
func (c *Controller) SendPlayCommand(_ context.Context, req core.PlayRequest) error {
	if len(req.ItemIDs) == 0 {
		return core.NewInvalidArgument("play command requires at least one item id")
	}
	if err := c.ensureConnected(); err != nil {
		return err
	}
	startSeconds := int(req.StartPositionTicks / 10_000_000)
	return c.client.Load(req.ItemIDs[0], "", startSeconds, 0, "", false)
}

func (c *Controller) SendPlaystateCommand(_ context.Context, req core.PlaystateRequest) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	switch req.Command {
	case core.PlaystateStop:
		return c.client.Stop()
	default:
		c.logger.Debug("playstate_command_not_supported_by_cast_device", slog.String("command", string(req.Command)))
		return nil
	}
}

func (c *Controller) SendGeneralCommand(_ context.Context, cmd core.GeneralCommand) error {
	c.logger.Debug("general_command_not_supported_by_cast_device", slog.String("name", cmd.Name))
	return nil
}

func (c *Controller) SendMessage(_ context.Context, name string, _ any) error {
	c.logger.Debug("message_not_supported_by_cast_device", slog.String("name", name))
	return nil
}

func (c *Controller) SendPlaybackStartNotification(context.Context, core.SessionDto) error    { return nil }
func (c *Controller) SendPlaybackStoppedNotification(context.Context, core.SessionDto) error  { return nil }
func (c *Controller) SendSessionEndedNotification(context.Context, core.SessionDto) error      { return nil }
func (c *Controller) SendServerShutdownNotification(context.Context) error                     { return nil }
func (c *Controller) SendServerRestartNotification(context.Context) error                       { return nil }
func (c *Controller) SendRestartRequiredNotification(context.Context) error                     { return nil }

func (c *Controller) Dispose() error {
	c.mu.Lock()
	c.live = false
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return nil
	}
	return c.client.Close(true)
}

var _ ports.SessionController = (*Controller)(nil)
