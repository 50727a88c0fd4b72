// Package rediscache decorates a ports.DeviceManager with a Redis-backed
// capabilities cache, so repeated GetCapabilities lookups for the same
// device avoid the backing store.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/ports"
)

const defaultTTL = 24 * time.Hour

// Connect opens a Redis client against addr and verifies connectivity with
// a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// DeviceManager wraps a ports.DeviceManager, caching GetCapabilities results
// in Redis and invalidating the cache entry on SaveCapabilities.
type DeviceManager struct {
	inner  ports.DeviceManager
	client *redis.Client
	ttl    time.Duration
}

func New(inner ports.DeviceManager, client *redis.Client) *DeviceManager {
	return &DeviceManager{inner: inner, client: client, ttl: defaultTTL}
}

func cacheKey(deviceID string) string { return "sessionhub:capabilities:" + deviceID }

func (d *DeviceManager) RegisterDevice(ctx context.Context, deviceID, deviceName, appName, appVersion, userID string) error {
	return d.inner.RegisterDevice(ctx, deviceID, deviceName, appName, appVersion, userID)
}

func (d *DeviceManager) GetDevice(deviceID string) (ports.DeviceInfo, bool) {
	return d.inner.GetDevice(deviceID)
}

func (d *DeviceManager) CanAccessDevice(user core.User, deviceID string) bool {
	return d.inner.CanAccessDevice(user, deviceID)
}

// GetCapabilities answers from Redis when present; otherwise it falls
// through to the wrapped manager and populates the cache on a hit. Redis
// errors are treated as a cache miss rather than surfaced to the caller —
// the capabilities store remains the source of truth.
func (d *DeviceManager) GetCapabilities(deviceID string) (core.CapabilitiesInfo, bool) {
	ctx := context.Background()
	raw, err := d.client.Get(ctx, cacheKey(deviceID)).Bytes()
	if err == nil {
		var caps core.CapabilitiesInfo
		if json.Unmarshal(raw, &caps) == nil {
			return caps, true
		}
	}

	caps, ok := d.inner.GetCapabilities(deviceID)
	if ok {
		if encoded, err := json.Marshal(caps); err == nil {
			d.client.Set(ctx, cacheKey(deviceID), encoded, d.ttl)
		}
	}
	return caps, ok
}

func (d *DeviceManager) SaveCapabilities(ctx context.Context, deviceID string, caps core.CapabilitiesInfo) error {
	if err := d.inner.SaveCapabilities(ctx, deviceID, caps); err != nil {
		return err
	}
	d.client.Del(ctx, cacheKey(deviceID))
	return nil
}

func (d *DeviceManager) OnDeviceOptionsUpdated(fn func(deviceID, newName string)) {
	d.inner.OnDeviceOptionsUpdated(fn)
}

var _ ports.DeviceManager = (*DeviceManager)(nil)
