// Package remotecontrol implements the remote-control command dispatcher:
// resolving a target session, asserting the controlling session may act on
// it, translating playback requests into a concrete item list, and
// forwarding the lowered command to the target's controller.
package remotecontrol

import (
	"context"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/ports"
	"mediahub.app/sessioncore/internal/sessioncore"
)

// SessionResolver is the narrow slice of *sessioncore.Manager the dispatcher
// needs — declared here, not imported as a concrete type dependency, so this
// package stays testable against a fake registry.
type SessionResolver interface {
	SessionByID(id string) *sessioncore.Session
}

// Dispatcher is the remote-control command dispatcher bound to one manager's
// session registry and its library/user/music collaborators.
type Dispatcher struct {
	sessions SessionResolver

	userManager    ports.UserManager
	libraryManager ports.LibraryManager
	musicManager   ports.MusicManager
	random         ports.Random
}

// Config bundles the collaborators a Dispatcher needs.
type Config struct {
	Sessions       SessionResolver
	UserManager    ports.UserManager
	LibraryManager ports.LibraryManager
	MusicManager   ports.MusicManager
	Random         ports.Random
}

// NewDispatcher builds a Dispatcher from its collaborators.
func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{
		sessions:       cfg.Sessions,
		userManager:    cfg.UserManager,
		libraryManager: cfg.LibraryManager,
		musicManager:   cfg.MusicManager,
		random:         cfg.Random,
	}
}

// resolveTargets resolves the target and, if present, the controlling
// session, and asserts the controlling session may act on the target. The
// assertion is a presence check only: any resolved controlling session may
// act on any resolved target.
func (d *Dispatcher) resolveTargets(controllingSessionID, targetSessionID string) (target, controlling *sessioncore.Session, err error) {
	target = d.sessions.SessionByID(targetSessionID)
	if target == nil {
		return nil, nil, core.NewNotFound("session not found: %s", targetSessionID)
	}
	if controllingSessionID != "" {
		controlling = d.sessions.SessionByID(controllingSessionID)
		if err := assertCanControl(target, controlling); err != nil {
			return nil, nil, err
		}
	}
	return target, controlling, nil
}

// assertCanControl is deliberately just a null check today; richer policy is
// a future hook.
func assertCanControl(target, controlling *sessioncore.Session) error {
	if controlling == nil {
		return core.NewSecurityDenied("controlling session not found")
	}
	_ = target
	return nil
}

func controllingUserID(controlling *sessioncore.Session) string {
	if controlling == nil {
		return ""
	}
	dto := controlling.Snapshot()
	return dto.UserID
}

// SendPlaystateCommand forwards a play/pause/seek/stop command to the
// target's controller.
func (d *Dispatcher) SendPlaystateCommand(ctx context.Context, controllingSessionID, targetSessionID string, req core.PlaystateRequest) error {
	target, controlling, err := d.resolveTargets(controllingSessionID, targetSessionID)
	if err != nil {
		return err
	}
	req.ControllingUserID = controllingUserID(controlling)
	ctrl := target.ControllerOrNil()
	if ctrl == nil {
		return core.NewInvalidArgument("session has no active controller")
	}
	return ctrl.SendPlaystateCommand(ctx, req)
}

// ReportNowViewingItem is intentionally disabled: browsing a library item
// without playing it is not tracked as session state by this core. Kept as
// an explicit entry point, rather than omitted, so callers get a defined
// (inert) behavior instead of a missing method.
func (d *Dispatcher) ReportNowViewingItem(context.Context, string, string) error {
	return nil
}

// SendBrowseCommand is lowered to SendGeneralCommand with name=DisplayContent.
func (d *Dispatcher) SendBrowseCommand(ctx context.Context, controllingSessionID, targetSessionID string, req core.BrowseRequest) error {
	target, controlling, err := d.resolveTargets(controllingSessionID, targetSessionID)
	if err != nil {
		return err
	}
	cmd := core.GeneralCommand{
		Name: "DisplayContent",
		Arguments: map[string]string{
			"ItemId":   req.ItemID,
			"ItemName": req.ItemName,
			"ItemType": req.ItemType,
		},
		ControllingUserID: controllingUserID(controlling),
	}
	ctrl := target.ControllerOrNil()
	if ctrl == nil {
		return core.NewInvalidArgument("session has no active controller")
	}
	return ctrl.SendGeneralCommand(ctx, cmd)
}

// SendMessageCommand is lowered to SendGeneralCommand with
// name=DisplayMessage. TimeoutMs is formatted invariant-culture style —
// plain base-10, no locale-dependent grouping or separators.
func (d *Dispatcher) SendMessageCommand(ctx context.Context, controllingSessionID, targetSessionID string, req core.MessageRequest) error {
	target, controlling, err := d.resolveTargets(controllingSessionID, targetSessionID)
	if err != nil {
		return err
	}
	cmd := core.GeneralCommand{
		Name: "DisplayMessage",
		Arguments: map[string]string{
			"Header":    req.Header,
			"Text":      req.Text,
			"TimeoutMs": formatInt(req.TimeoutMs),
		},
		ControllingUserID: controllingUserID(controlling),
	}
	ctrl := target.ControllerOrNil()
	if ctrl == nil {
		return core.NewInvalidArgument("session has no active controller")
	}
	return ctrl.SendGeneralCommand(ctx, cmd)
}

// SendGeneralCommand is the shared command path for anything that does not
// have a dedicated verb.
func (d *Dispatcher) SendGeneralCommand(ctx context.Context, controllingSessionID, targetSessionID string, cmd core.GeneralCommand) error {
	target, controlling, err := d.resolveTargets(controllingSessionID, targetSessionID)
	if err != nil {
		return err
	}
	cmd.ControllingUserID = controllingUserID(controlling)
	ctrl := target.ControllerOrNil()
	if ctrl == nil {
		return core.NewInvalidArgument("session has no active controller")
	}
	return ctrl.SendGeneralCommand(ctx, cmd)
}

func formatInt(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
