package sessioncore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/events"
	"mediahub.app/sessioncore/internal/ports"
)

const (
	defaultAutoProgressInterval = 10 * time.Second
	defaultIdleSweepInterval    = 5 * time.Minute
	defaultIdleThreshold        = 5 * time.Minute
	activityEmitThreshold       = 10 * time.Second
	userActivityRefreshAfter    = 60 * time.Second

	defaultRetryAttempts    = 3
	defaultRetryBaseBackoff = 120 * time.Millisecond
	defaultRetryMaxBackoff  = 2 * time.Second
)

// Manager is the Session Manager core: it owns the registry, drives session
// lifecycle, the playback state machine and the idle sweeper.
type Manager struct {
	logger *slog.Logger
	bus    *events.Bus
	reg    *registry

	timerFactory ports.TimerFactory

	userManager        ports.UserManager
	userDataManager    ports.UserDataManager
	libraryManager     ports.LibraryManager
	mediaSourceManager ports.MediaSourceManager
	deviceManager      ports.DeviceManager

	controllerFactories []ports.SessionControllerFactory

	now func() time.Time

	retryAttempts    int
	retryBaseBackoff time.Duration
	retryMaxBackoff  time.Duration

	autoProgressInterval time.Duration
	idleSweepInterval    time.Duration
	idleThreshold        time.Duration

	// mu is the single serializing lock guarding the registry mutation
	// path of LogSessionActivity / ReportSessionEnded.
	// It must never be held across fan-out, persistence, or collaborator
	// I/O — every method below releases it before doing any of that.
	mu sync.Mutex

	idleSweepStop    func()
	idleSweepRunning bool

	closed bool
}

// Config bundles the collaborators a Manager needs.
type Config struct {
	Logger              *slog.Logger
	Bus                 *events.Bus
	TimerFactory        ports.TimerFactory
	UserManager         ports.UserManager
	UserDataManager     ports.UserDataManager
	LibraryManager      ports.LibraryManager
	MediaSourceManager  ports.MediaSourceManager
	DeviceManager       ports.DeviceManager
	ControllerFactories []ports.SessionControllerFactory
	Now                 func() time.Time

	AutoProgressInterval time.Duration
	IdleSweepInterval    time.Duration
	IdleThreshold        time.Duration
}

// NewManager wires a Manager from its collaborators, filling in defaults
// for anything left unset.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus(cfg.Logger)
	}
	if cfg.TimerFactory == nil {
		cfg.TimerFactory = ports.NewRealTimerFactory()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AutoProgressInterval <= 0 {
		cfg.AutoProgressInterval = defaultAutoProgressInterval
	}
	if cfg.IdleSweepInterval <= 0 {
		cfg.IdleSweepInterval = defaultIdleSweepInterval
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = defaultIdleThreshold
	}

	m := &Manager{
		logger:               cfg.Logger,
		bus:                  cfg.Bus,
		reg:                  newRegistry(),
		timerFactory:         cfg.TimerFactory,
		userManager:          cfg.UserManager,
		userDataManager:      cfg.UserDataManager,
		libraryManager:       cfg.LibraryManager,
		mediaSourceManager:   cfg.MediaSourceManager,
		deviceManager:        cfg.DeviceManager,
		controllerFactories:  cfg.ControllerFactories,
		now:                  cfg.Now,
		retryAttempts:        defaultRetryAttempts,
		retryBaseBackoff:     defaultRetryBaseBackoff,
		retryMaxBackoff:      defaultRetryMaxBackoff,
		autoProgressInterval: cfg.AutoProgressInterval,
		idleSweepInterval:    cfg.IdleSweepInterval,
		idleThreshold:        cfg.IdleThreshold,
	}

	if m.deviceManager != nil {
		m.deviceManager.OnDeviceOptionsUpdated(m.onDeviceRenamed)
	}
	return m
}

func (m *Manager) safeLogf(msg string, args ...any) {
	if m.logger == nil {
		return
	}
	m.logger.Debug(msg, args...)
}

// sessionID is a deterministic digest of (client ‖ deviceId), following the
// same `prefix_` + sha1-prefix convention used for device ids elsewhere in
// this codebase.
func sessionID(client, deviceID string) string {
	sum := sha1.Sum([]byte(strings.ToLower(client) + "|" + strings.ToLower(deviceID)))
	return "sess_" + hex.EncodeToString(sum[:8])
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// LogSessionActivity creates or looks up the session for (appName,
// deviceID), binds a controller to it if needed, records activity, and
// publishes session-started/activity events as appropriate.
func (m *Manager) LogSessionActivity(ctx context.Context, appName, appVersion, deviceID, deviceName, remoteEndPoint string, user *core.User) (*Session, error) {
	if m.isClosed() {
		return nil, core.NewDisposed("session manager is closed")
	}
	if appName == "" || appVersion == "" || deviceID == "" || deviceName == "" || remoteEndPoint == "" {
		return nil, core.NewInvalidArgument("appName, appVersion, deviceId, deviceName and remoteEndPoint are all required")
	}

	key := GetSessionKey(appName, deviceID)

	var (
		sess   *Session
		isNew  bool
	)

	m.mu.Lock()
	sess = m.reg.get(key)
	if sess == nil {
		isNew = true
		sess = newSession(sessionID(appName, deviceID), deviceID, appName)
		m.reg.insert(key, sess)
	}
	m.mu.Unlock()

	if isNew {
		m.bus.Publish(core.Event{Kind: core.EventSessionStarted, At: m.now(), Session: sessPtr(sess.Snapshot())})

		if m.deviceManager != nil {
			if caps, ok := m.deviceManager.GetCapabilities(deviceID); ok {
				sess.mu.Lock()
				sess.appIconURL = caps.IconURL
				sess.capabilities = caps
				sess.mu.Unlock()
			}
		}

		if !sess.hasController() {
			sess.setController(m.resolveController(sess))
		}

		if m.deviceManager != nil {
			userID := ""
			if user != nil {
				userID = user.ID
			}
			if err := m.withRetry(ctx, "register_device", func() error {
				return m.deviceManager.RegisterDevice(ctx, deviceID, deviceName, appName, appVersion, userID)
			}); err != nil {
				m.logger.Error("register_device_failed", slog.String("device_id", deviceID), slog.String("error", err.Error()))
			}
		}
	}

	if !sess.hasController() {
		sess.setController(m.resolveController(sess))
	}

	resolvedDeviceName := deviceName
	if m.deviceManager != nil {
		if dev, ok := m.deviceManager.GetDevice(deviceID); ok && dev.CustomName != "" {
			resolvedDeviceName = dev.CustomName
		}
	}

	sess.mu.Lock()
	sess.deviceName = resolvedDeviceName
	if user != nil {
		sess.userID = user.ID
		sess.userName = user.Name
	}
	sess.remoteEndPoint = remoteEndPoint
	sess.applicationVersion = appVersion
	sess.mu.Unlock()

	activityDate := m.now()
	sess.mu.Lock()
	prevActivity := sess.lastActivityDate
	if sess.lastActivityDate.Before(activityDate) {
		sess.lastActivityDate = activityDate
	}
	sess.mu.Unlock()

	if prevActivity.IsZero() || activityDate.Sub(prevActivity) > activityEmitThreshold {
		m.bus.Publish(core.Event{Kind: core.EventSessionActivity, At: activityDate, Session: sessPtr(sess.Snapshot())})
	}

	if user != nil && activityDate.Sub(user.LastActivityDate) > userActivityRefreshAfter && m.userManager != nil {
		updated := *user
		updated.LastActivityDate = activityDate
		if err := m.userManager.UpdateUser(ctx, updated); err != nil {
			m.logger.Error("update_user_activity_failed", slog.String("user_id", user.ID), slog.String("error", err.Error()))
		}
	}

	if controller := sess.controllerOrNil(); controller != nil {
		controller.OnActivity()
	}

	return sess, nil
}

func (m *Manager) resolveController(sess *Session) ports.SessionController {
	for _, f := range m.controllerFactories {
		if f == nil {
			continue
		}
		caps := sess.capabilitiesSnapshot()
		if c := f.GetSessionController(sess.ID, sess.DeviceID, caps); c != nil {
			return c
		}
	}
	return nil
}

func (s *Session) capabilitiesSnapshot() core.CapabilitiesInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}

func (m *Manager) onDeviceRenamed(deviceID, newName string) {
	for _, sess := range m.reg.byDeviceIDSnapshot(deviceID) {
		sess.mu.Lock()
		sess.deviceName = newName
		sess.mu.Unlock()
	}
}

// ReportSessionEnded removes the session from the registry, publishes
// EventSessionEnded, fans the notification out to everyone still listening,
// and disposes the session's controller.
func (m *Manager) ReportSessionEnded(ctx context.Context, sessionID string) error {
	if m.isClosed() {
		return core.NewDisposed("session manager is closed")
	}

	m.mu.Lock()
	sess := m.reg.removeByID(sessionID)
	m.mu.Unlock()

	if sess == nil {
		return core.NewNotFound("session not found: %s", sessionID)
	}

	dto := sess.Snapshot()
	m.bus.Publish(core.Event{Kind: core.EventSessionEnded, At: m.now(), Session: &dto})
	m.fanoutActive(ctx, core.NotificationSessionEnded, dto)

	if err := sess.Dispose(); err != nil {
		m.logger.Error("session_dispose_failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}
	return nil
}

// fanoutActive snapshots every currently active session and broadcasts kind
// to all of them. Used both by notification helpers below and by
// ReportSessionEnded, which additionally fans the ended session's own dto
// out to everyone else still listening.
func (m *Manager) fanoutActive(ctx context.Context, kind core.NotificationKind, dto core.SessionDto) {
	var targets []events.Target
	for _, sess := range m.reg.snapshot() {
		if !sess.isActive() {
			continue
		}
		controller := sess.controllerOrNil()
		if controller == nil {
			continue
		}
		targets = append(targets, events.Target{SessionID: sess.ID, Controller: controller, Dto: dto})
	}
	m.bus.Fanout(ctx, kind, targets)
}

// Sessions returns every session in the registry, ordered by
// lastActivityDate descending.
func (m *Manager) Sessions() []core.SessionDto {
	snap := m.reg.snapshot()
	out := make([]core.SessionDto, 0, len(snap))
	for _, s := range snap {
		out = append(out, s.Snapshot())
	}
	return out
}

// SessionByID resolves a single session, or nil.
func (m *Manager) SessionByID(id string) *Session {
	return m.reg.getByID(id)
}

// SessionsByDeviceID resolves every session bound to a device id.
func (m *Manager) SessionsByDeviceID(deviceID string) []*Session {
	return m.reg.byDeviceIDSnapshot(deviceID)
}

// SessionsByDeviceAndClient resolves the sessions bound to a device id,
// further filtered to one client app name.
func (m *Manager) SessionsByDeviceAndClient(deviceID, client string) []*Session {
	return m.reg.byDeviceAndClientSnapshot(deviceID, client)
}

// Close stops the idle-sweep timer (without waiting for a tick already in
// progress) and disposes every remaining session,
// acting as a shutdown barrier for the manager.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	stop := m.idleSweepStop
	m.idleSweepStop = nil
	m.idleSweepRunning = false
	m.mu.Unlock()

	if stop != nil {
		stop()
	}

	var errs []string
	for _, sess := range m.reg.snapshot() {
		if err := sess.Dispose(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func sessPtr(dto core.SessionDto) *core.SessionDto { return &dto }
