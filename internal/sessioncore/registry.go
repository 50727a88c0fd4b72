package sessioncore

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// registry is the concurrent mapping from (client, deviceId) to Session.
// Mutation through the registry is always performed under Manager's
// primary lock; registry itself only adds the map bookkeeping, it does
// not re-introduce locking of its own beyond what's needed for safe
// concurrent snapshot iteration.
type registry struct {
	mu             sync.RWMutex
	byKey          map[string]*Session
	byID           map[string]*Session
	byDeviceID     map[string][]*Session
}

func newRegistry() *registry {
	return &registry{
		byKey:      map[string]*Session{},
		byID:       map[string]*Session{},
		byDeviceID: map[string][]*Session{},
	}
}

// GetSessionKey builds the case-insensitive client‖deviceId registry key.
func GetSessionKey(client, deviceID string) string {
	return strings.ToLower(client) + "|" + strings.ToLower(deviceID)
}

func (r *registry) get(key string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byKey[key]
}

func (r *registry) getByID(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

func (r *registry) insert(key string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[key] = s
	r.byID[s.ID] = s
	r.byDeviceID[strings.ToLower(s.DeviceID)] = append(r.byDeviceID[strings.ToLower(s.DeviceID)], s)
}

func (r *registry) removeByKey(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byKey[key]
	if !ok {
		return nil
	}
	delete(r.byKey, key)
	delete(r.byID, s.ID)
	r.removeFromDeviceIndexLocked(s)
	return s
}

func (r *registry) removeByID(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	for k, v := range r.byKey {
		if v == s {
			delete(r.byKey, k)
			break
		}
	}
	r.removeFromDeviceIndexLocked(s)
	return s
}

func (r *registry) removeFromDeviceIndexLocked(s *Session) {
	devKey := strings.ToLower(s.DeviceID)
	list := r.byDeviceID[devKey]
	for i, v := range list {
		if v == s {
			r.byDeviceID[devKey] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.byDeviceID[devKey]) == 0 {
		delete(r.byDeviceID, devKey)
	}
}

// snapshot returns every session ordered by lastActivityDate descending.
// Callers must not hold a structural lock while performing I/O — this
// returns a plain slice precisely so callers can range over it after
// releasing r.mu.
func (r *registry) snapshot() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].getLastActivityDate().After(out[j].getLastActivityDate())
	})
	return out
}

func (s *Session) getLastActivityDate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityDate
}

// byDeviceIDSnapshot returns the sessions for a given device id.
func (r *registry) byDeviceIDSnapshot(deviceID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byDeviceID[strings.ToLower(deviceID)]
	return append([]*Session{}, list...)
}

// byDeviceAndClientSnapshot filters further by client app name.
func (r *registry) byDeviceAndClientSnapshot(deviceID, client string) []*Session {
	matches := r.byDeviceIDSnapshot(deviceID)
	out := make([]*Session, 0, len(matches))
	for _, s := range matches {
		if strings.EqualFold(s.Client, client) {
			out = append(out, s)
		}
	}
	return out
}
