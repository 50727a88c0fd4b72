// Package ports defines the narrow collaborator interfaces the Session
// Manager core binds to. Every concrete implementation — database,
// library lookup, transcoding, transport — lives outside this package;
// package ports only fixes the shape the core depends on, so the core can be
// tested against fakes and swapped onto real backends without caring which.
package ports

import (
	"context"

	"mediahub.app/sessioncore/internal/core"
)

// UserManager resolves and authenticates users.
type UserManager interface {
	Users() []core.User
	GetUserByID(id string) (*core.User, bool)
	GetUserByName(name string) (*core.User, bool)
	AuthenticateUser(ctx context.Context, username, password, passwordSHA1, passwordMD5, remoteEndPoint string, isApp bool) (*core.User, error)
	UpdateUser(ctx context.Context, user core.User) error
	GetUserDto(user core.User, remoteEndPoint string) core.UserDto

	// CheckParentalSchedule reports whether user is allowed to use the
	// server right now. CheckDeviceAccess reports whether deviceId is
	// permitted for user.
	CheckParentalSchedule(user core.User) bool
	CheckDeviceAccess(user core.User, deviceID string) bool
	// GetPlayAccess is the permission verdict SendPlayCommand enforces
	// per requested item.
	GetPlayAccess(user core.User, item core.BaseItem) core.PlayAccess
}

// UserDataManager owns per-user play-state and completion rules.
type UserDataManager interface {
	GetUserData(userID string, item core.BaseItem) core.UserItemData
	// UpdatePlayState returns playedToCompletion per the manager's own rule.
	UpdatePlayState(item core.BaseItem, data core.UserItemData, positionTicks int64) bool
	SaveUserData(ctx context.Context, userID string, item core.BaseItem, data core.UserItemData, reason core.SaveReason) error
}

// LibraryManager resolves items by id and expands the variant facets
// TranslateItemForPlayback needs — IItemByName and Folder both
// resolve to a flat list of playable descendants, Episode resolves to its
// series' ordered episode list for next-episode autoplay.
type LibraryManager interface {
	GetItemByID(id string) (*core.BaseItem, bool)
	// GetPlayableDescendants returns the non-folder, non-virtual descendants
	// of a Folder or IItemByName item (recursive for folders).
	GetPlayableDescendants(ctx context.Context, item core.BaseItem) ([]core.BaseItem, error)
	// GetSeriesEpisodes returns a series' episodes in playback order.
	GetSeriesEpisodes(ctx context.Context, seriesID string) ([]core.BaseItem, error)
}

// MusicManager generates instant mixes.
type MusicManager interface {
	GetInstantMixFromItem(ctx context.Context, item core.BaseItem, user core.User) ([]core.BaseItem, error)
}

// MediaSourceManager resolves and tears down media sources.
type MediaSourceManager interface {
	GetMediaSource(ctx context.Context, item core.BaseItem, mediaSourceID, liveStreamID string) (*core.MediaSourceInfo, error)
	CloseLiveStream(ctx context.Context, liveStreamID string) error
}

// DeviceManager tracks the device registry and its persisted capabilities.
type DeviceManager interface {
	RegisterDevice(ctx context.Context, deviceID, deviceName, appName, appVersion, userID string) error
	GetDevice(deviceID string) (DeviceInfo, bool)
	CanAccessDevice(user core.User, deviceID string) bool
	GetCapabilities(deviceID string) (core.CapabilitiesInfo, bool)
	SaveCapabilities(ctx context.Context, deviceID string, caps core.CapabilitiesInfo) error
	// OnDeviceOptionsUpdated lets the core subscribe to device rename
	// events, renaming every session with a matching deviceId.
	OnDeviceOptionsUpdated(func(deviceID, newName string))
}

// DeviceInfo is the device-registry projection the core reads.
type DeviceInfo struct {
	ID         string
	CustomName string
}

// AuthenticationRepository persists access tokens.
type AuthenticationRepository interface {
	Get(ctx context.Context, query AuthQuery) ([]AuthInfo, error)
	Create(ctx context.Context, info AuthInfo) error
	Update(ctx context.Context, info AuthInfo) error
}

// AuthQuery filters AuthenticationRepository.Get.
type AuthQuery struct {
	AccessToken string
	UserID      string
	DeviceID    string
	IsActive    *bool
	Limit       int
}

// AuthInfo is a single persisted access-token row.
type AuthInfo struct {
	AccessToken string
	UserID      string
	DeviceID    string
	IsActive    bool
	DateCreated int64 // unix seconds
}

// Random is the injected PRNG collaborator, so shuffle behavior is
// deterministic under test.
type Random interface {
	// Float64s returns n independent uniform [0,1) draws used as shuffle
	// sort keys — one call site, one source of randomness to fake.
	Float64s(n int) []float64
}

// SessionController is the transport adapter bound to a session.
type SessionController interface {
	ID() string
	OnActivity()
	SendGeneralCommand(ctx context.Context, cmd core.GeneralCommand) error
	SendPlaystateCommand(ctx context.Context, req core.PlaystateRequest) error
	SendPlayCommand(ctx context.Context, req core.PlayRequest) error
	SendMessage(ctx context.Context, name string, data any) error
	SendPlaybackStartNotification(ctx context.Context, dto core.SessionDto) error
	SendPlaybackStoppedNotification(ctx context.Context, dto core.SessionDto) error
	SendSessionEndedNotification(ctx context.Context, dto core.SessionDto) error
	SendServerShutdownNotification(ctx context.Context) error
	SendServerRestartNotification(ctx context.Context) error
	SendRestartRequiredNotification(ctx context.Context) error
	// IsLive reports whether the transport is actually connected; an
	// inactive session
	// is excluded from fan-out.
	IsLive() bool
	// Dispose tears down transport resources. Controllers that hold no
	// resources may no-op.
	Dispose() error
}

// SessionControllerFactory is one link in the Controller Factory Chain.
// GetSessionController returns nil, not an error, when this factory does
// not claim the session — the manager walks the chain for the first
// non-nil result.
type SessionControllerFactory interface {
	GetSessionController(sessionID, deviceID string, caps core.CapabilitiesInfo) SessionController
}
