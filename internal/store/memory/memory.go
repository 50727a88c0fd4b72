// Package memory provides in-memory reference implementations of the ports
// collaborator interfaces, used by cmd/sessionhubd for a zero-dependency
// boot and by package tests as lightweight fakes, in the hand-rolled
// fake-struct style used throughout this codebase's tests rather than a
// mocking framework.
package memory

import (
	"context"
	"strings"
	"sync"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/ports"
)

// Users is an in-memory ports.UserManager.
type Users struct {
	mu    sync.RWMutex
	byID  map[string]core.User
	byLC  map[string]string // lowercased name -> id
}

func NewUsers() *Users {
	return &Users{byID: map[string]core.User{}, byLC: map[string]string{}}
}

func (u *Users) Put(user core.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.byID[user.ID] = user
	u.byLC[strings.ToLower(user.Name)] = user.ID
}

func (u *Users) Users() []core.User {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]core.User, 0, len(u.byID))
	for _, v := range u.byID {
		out = append(out, v)
	}
	return out
}

func (u *Users) GetUserByID(id string) (*core.User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	v, ok := u.byID[id]
	if !ok {
		return nil, false
	}
	return &v, true
}

func (u *Users) GetUserByName(name string) (*core.User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	id, ok := u.byLC[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	v := u.byID[id]
	return &v, true
}

// AuthenticateUser always fails in the reference implementation; real
// deployments bind a server's actual user store here instead.
func (u *Users) AuthenticateUser(_ context.Context, _, _, _, _, _ string, _ bool) (*core.User, error) {
	return nil, core.NewSecurityDenied("no authentication backend configured")
}

func (u *Users) UpdateUser(_ context.Context, user core.User) error {
	u.Put(user)
	return nil
}

func (u *Users) GetUserDto(user core.User, _ string) core.UserDto {
	return core.UserDto{ID: user.ID, Name: user.Name}
}

func (u *Users) CheckParentalSchedule(core.User) bool { return true }

func (u *Users) CheckDeviceAccess(core.User, string) bool { return true }

func (u *Users) GetPlayAccess(core.User, core.BaseItem) core.PlayAccess { return core.PlayAccessFull }

var _ ports.UserManager = (*Users)(nil)

// UserData is an in-memory ports.UserDataManager.
type UserData struct {
	mu   sync.Mutex
	data map[string]core.UserItemData // key: userID|itemID
}

func NewUserData() *UserData {
	return &UserData{data: map[string]core.UserItemData{}}
}

func key(userID, itemID string) string { return userID + "|" + itemID }

func (d *UserData) GetUserData(userID string, item core.BaseItem) core.UserItemData {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.data[key(userID, item.ID)]; ok {
		return v
	}
	return core.UserItemData{UserID: userID, ItemID: item.ID}
}

// UpdatePlayState applies the "90% complete" completion rule common across
// Jellyfin/Emby-style servers.
func (d *UserData) UpdatePlayState(item core.BaseItem, data core.UserItemData, positionTicks int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	data.PlaybackPositionTicks = positionTicks
	playedToCompletion := item.RunTimeTicks > 0 && positionTicks >= (item.RunTimeTicks*9)/10
	if playedToCompletion {
		data.Played = true
		data.PlaybackPositionTicks = 0
		data.PlayCount++
	}
	d.data[key(data.UserID, data.ItemID)] = data
	return playedToCompletion
}

func (d *UserData) SaveUserData(_ context.Context, userID string, item core.BaseItem, data core.UserItemData, _ core.SaveReason) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	data.UserID = userID
	data.ItemID = item.ID
	d.data[key(userID, item.ID)] = data
	return nil
}

var _ ports.UserDataManager = (*UserData)(nil)

// Library is an in-memory ports.LibraryManager.
type Library struct {
	mu             sync.RWMutex
	items          map[string]core.BaseItem
	descendants    map[string][]string
	seriesEpisodes map[string][]string
}

func NewLibrary() *Library {
	return &Library{
		items:          map[string]core.BaseItem{},
		descendants:    map[string][]string{},
		seriesEpisodes: map[string][]string{},
	}
}

func (l *Library) Put(item core.BaseItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[item.ID] = item
}

// RegisterDescendants records the flat descendant-id list a Folder or
// IItemByName item resolves to.
func (l *Library) RegisterDescendants(parentID string, descendantIDs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.descendants[parentID] = descendantIDs
}

// RegisterSeriesEpisodes records a series' episode ids in playback order.
func (l *Library) RegisterSeriesEpisodes(seriesID string, episodeIDs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seriesEpisodes[seriesID] = episodeIDs
}

func (l *Library) GetItemByID(id string) (*core.BaseItem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.items[id]
	if !ok {
		return nil, false
	}
	return &v, true
}

// GetPlayableDescendants returns every non-folder, non-virtual item among the
// ids registered for item via RegisterDescendants — the in-memory store has
// no hierarchy of its own, so descendants are exactly that registered list.
func (l *Library) GetPlayableDescendants(_ context.Context, item core.BaseItem) ([]core.BaseItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.descendants[item.ID]
	out := make([]core.BaseItem, 0, len(ids))
	for _, id := range ids {
		if v, ok := l.items[id]; ok && !v.IsFolder && !v.IsVirtualItem {
			out = append(out, v)
		}
	}
	return out, nil
}

func (l *Library) GetSeriesEpisodes(_ context.Context, seriesID string) ([]core.BaseItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.seriesEpisodes[seriesID]
	out := make([]core.BaseItem, 0, len(ids))
	for _, id := range ids {
		if v, ok := l.items[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

var _ ports.LibraryManager = (*Library)(nil)

// Music is an in-memory ports.MusicManager; GetInstantMixFromItem returns an
// empty mix unless seeded via RegisterMix.
type Music struct {
	mu   sync.RWMutex
	mix  map[string][]core.BaseItem
}

func NewMusic() *Music { return &Music{mix: map[string][]core.BaseItem{}} }

func (m *Music) RegisterMix(seedItemID string, mix []core.BaseItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mix[seedItemID] = mix
}

func (m *Music) GetInstantMixFromItem(_ context.Context, item core.BaseItem, _ core.User) ([]core.BaseItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.BaseItem{}, m.mix[item.ID]...), nil
}

var _ ports.MusicManager = (*Music)(nil)

// MediaSources is an in-memory ports.MediaSourceManager.
type MediaSources struct {
	mu      sync.RWMutex
	sources map[string]core.MediaSourceInfo
}

func NewMediaSources() *MediaSources {
	return &MediaSources{sources: map[string]core.MediaSourceInfo{}}
}

func (m *MediaSources) Put(src core.MediaSourceInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[src.ID] = src
}

func (m *MediaSources) GetMediaSource(_ context.Context, _ core.BaseItem, mediaSourceID, _ string) (*core.MediaSourceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.sources[mediaSourceID]
	if !ok {
		return nil, core.NewNotFound("media source not found: %s", mediaSourceID)
	}
	return &v, nil
}

func (m *MediaSources) CloseLiveStream(context.Context, string) error { return nil }

var _ ports.MediaSourceManager = (*MediaSources)(nil)

// AuthTokens is an in-memory ports.AuthenticationRepository, the default
// backing store when no Postgres DSN is configured.
type AuthTokens struct {
	mu   sync.Mutex
	rows []ports.AuthInfo
}

func NewAuthTokens() *AuthTokens { return &AuthTokens{} }

func (a *AuthTokens) Get(_ context.Context, query ports.AuthQuery) ([]ports.AuthInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []ports.AuthInfo
	for _, row := range a.rows {
		if query.AccessToken != "" && row.AccessToken != query.AccessToken {
			continue
		}
		if query.UserID != "" && row.UserID != query.UserID {
			continue
		}
		if query.DeviceID != "" && row.DeviceID != query.DeviceID {
			continue
		}
		if query.IsActive != nil && row.IsActive != *query.IsActive {
			continue
		}
		out = append(out, row)
		if query.Limit > 0 && len(out) >= query.Limit {
			break
		}
	}
	return out, nil
}

func (a *AuthTokens) Create(_ context.Context, info ports.AuthInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, info)
	return nil
}

func (a *AuthTokens) Update(_ context.Context, info ports.AuthInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, row := range a.rows {
		if row.AccessToken == info.AccessToken {
			a.rows[i] = info
			return nil
		}
	}
	return core.NewNotFound("access token not found: %s", info.AccessToken)
}

var _ ports.AuthenticationRepository = (*AuthTokens)(nil)
