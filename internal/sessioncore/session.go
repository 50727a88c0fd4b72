// Package sessioncore implements the concurrency hub of the media server:
// the session registry, the session entity, the activity/lifecycle driver,
// the playback state machine and the idle sweeper.
package sessioncore

import (
	"sync"
	"time"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/ports"
)

// Session is one live connection from one client app on one device.
// Identity fields are set once at creation and never mutated afterward;
// every other field is guarded by mu, since activity reports and
// remote-control reads race against each other.
type Session struct {
	// Identity — immutable for the session's lifetime.
	ID       string
	DeviceID string
	Client   string

	mu sync.Mutex

	applicationVersion string
	deviceName         string
	userID             string
	userName           string
	additionalUsers    []core.AdditionalUser
	remoteEndPoint     string
	appIconURL         string

	lastActivityDate    time.Time
	lastPlaybackCheckIn time.Time

	nowPlayingItem     *core.NowPlayingItemDto
	fullNowPlayingItem *core.BaseItem
	playState          core.PlayState
	transcodingInfo    any

	capabilities core.CapabilitiesInfo

	controller ports.SessionController

	autoProgressStop func()

	disposed bool
}

func newSession(id, deviceID, client string) *Session {
	return &Session{ID: id, DeviceID: deviceID, Client: client}
}

// Snapshot returns a point-in-time core.SessionDto; external readers never
// see a partially-updated session.
func (s *Session) Snapshot() core.SessionDto {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() core.SessionDto {
	isActive := s.controller != nil && s.controller.IsLive()
	return core.SessionDto{
		ID:                  s.ID,
		DeviceID:            s.DeviceID,
		DeviceName:          s.deviceName,
		Client:              s.Client,
		ApplicationVersion:  s.applicationVersion,
		UserID:              s.userID,
		UserName:            s.userName,
		AdditionalUsers:     append([]core.AdditionalUser{}, s.additionalUsers...),
		RemoteEndPoint:      s.remoteEndPoint,
		AppIconURL:          s.appIconURL,
		LastActivityDate:    s.lastActivityDate,
		LastPlaybackCheckIn: s.lastPlaybackCheckIn,
		NowPlayingItem:      s.nowPlayingItem,
		PlayState:           s.playState,
		PlayableMediaTypes:  append([]string{}, s.capabilities.PlayableMediaTypes...),
		SupportedCommands:   append([]string{}, s.capabilities.SupportedCommands...),
		IsActive:            isActive,
	}
}

func (s *Session) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller != nil && s.controller.IsLive()
}

func (s *Session) controllerOrNil() ports.SessionController {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller
}

func (s *Session) setController(c ports.SessionController) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller = c
}

func (s *Session) hasController() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller != nil
}

func (s *Session) userIDs() (primary string, all []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return "", nil
	}
	all = append(all, s.userID)
	for _, a := range s.additionalUsers {
		all = append(all, a.UserID)
	}
	return s.userID, all
}

func (s *Session) playableMediaTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.capabilities.PlayableMediaTypes...)
}

// ControllerOrNil exposes the bound transport controller to collaborators
// outside this package (the remote-control dispatcher forwards commands
// through it directly).
func (s *Session) ControllerOrNil() ports.SessionController { return s.controllerOrNil() }

// UserIDs exposes the primary user id and every additional-user id bound to
// the session, in the order the client reported them.
func (s *Session) UserIDs() (primary string, all []string) { return s.userIDs() }

// PlayableMediaTypes exposes the session's negotiated playable media types.
func (s *Session) PlayableMediaTypes() []string { return s.playableMediaTypes() }

// FullNowPlayingItem exposes the fully-resolved library item currently
// playing, if any (nil once playback stops).
func (s *Session) FullNowPlayingItem() *core.BaseItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullNowPlayingItem
}

// StartAutomaticProgress arms the per-session auto-progress timer.
// Starting a new playback cancels any previous timer —
// callers must always go through this method rather than touching
// autoProgressStop directly.
func (s *Session) StartAutomaticProgress(timerFactory ports.TimerFactory, interval time.Duration, onTick func()) {
	s.mu.Lock()
	prevStop := s.autoProgressStop
	s.mu.Unlock()
	if prevStop != nil {
		prevStop()
	}

	stop := timerFactory.StartRepeating(interval, onTick)
	s.mu.Lock()
	s.autoProgressStop = stop
	s.mu.Unlock()
}

// StopAutomaticProgress cancels the timer, if any.
func (s *Session) StopAutomaticProgress() {
	s.mu.Lock()
	stop := s.autoProgressStop
	s.autoProgressStop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Dispose cancels the auto-progress timer and disposes the bound
// controller, if one is bound.
func (s *Session) Dispose() error {
	s.StopAutomaticProgress()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	controller := s.controller
	s.mu.Unlock()

	if controller != nil {
		return controller.Dispose()
	}
	return nil
}
