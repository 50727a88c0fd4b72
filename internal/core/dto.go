package core

import "time"

// AdditionalUser is a (user-id, user-name) pair riding along on a session
// that is not the session's primary user; empty unless UserID is set.
type AdditionalUser struct {
	UserID   string
	UserName string
}

// CapabilitiesInfo is the opaque-to-the-manager capabilities record reported
// by a client, plus the handful of fields the manager does read.
type CapabilitiesInfo struct {
	PlayableMediaTypes   []string
	SupportedCommands    []string
	SupportsMediaControl bool
	IconURL              string
	MessageCallbackURL   string
	Raw                  map[string]any
}

// SessionDto is the point-in-time snapshot handed to DTO/event consumers —
// callers never get a pointer into the live Session.
type SessionDto struct {
	ID                 string
	DeviceID           string
	DeviceName         string
	Client             string
	ApplicationVersion string
	UserID             string
	UserName           string
	AdditionalUsers    []AdditionalUser
	RemoteEndPoint     string
	AppIconURL         string
	LastActivityDate   time.Time
	LastPlaybackCheckIn time.Time
	NowPlayingItem     *NowPlayingItemDto
	PlayState          PlayState
	PlayableMediaTypes []string
	SupportedCommands  []string
	IsActive           bool
}

// NowPlayingItemDto is the DTO snapshot of the item a session is currently
// playing.
type NowPlayingItemDto struct {
	ItemID       string
	Name         string
	MediaType    string
	RunTimeTicks int64
}

// UserDto is the minimal user projection the manager threads through auth
// responses; the real shape is owned by the user manager collaborator.
type UserDto struct {
	ID   string
	Name string
}

// AuthenticationResult is returned by AuthenticateNewSession.
type AuthenticationResult struct {
	User        UserDto
	Session     SessionDto
	AccessToken string
	ServerID    string
}
