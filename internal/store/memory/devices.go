package memory

import (
	"context"
	"sync"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/ports"
)

// Devices is an in-memory ports.DeviceManager.
type Devices struct {
	mu           sync.RWMutex
	devices      map[string]ports.DeviceInfo
	caps         map[string]core.CapabilitiesInfo
	accessDenied map[string]bool // deviceId -> denied for every user
	onRenamed    func(deviceID, newName string)
}

func NewDevices() *Devices {
	return &Devices{
		devices:      map[string]ports.DeviceInfo{},
		caps:         map[string]core.CapabilitiesInfo{},
		accessDenied: map[string]bool{},
	}
}

func (d *Devices) RegisterDevice(_ context.Context, deviceID, deviceName, _, _, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.devices[deviceID]; !exists {
		d.devices[deviceID] = ports.DeviceInfo{ID: deviceID, CustomName: deviceName}
	}
	return nil
}

// Rename sets a custom device name and fires OnDeviceOptionsUpdated.
func (d *Devices) Rename(deviceID, newName string) {
	d.mu.Lock()
	info := d.devices[deviceID]
	info.ID = deviceID
	info.CustomName = newName
	d.devices[deviceID] = info
	cb := d.onRenamed
	d.mu.Unlock()
	if cb != nil {
		cb(deviceID, newName)
	}
}

func (d *Devices) GetDevice(deviceID string) (ports.DeviceInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.devices[deviceID]
	return v, ok
}

func (d *Devices) DenyAccess(deviceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accessDenied[deviceID] = true
}

func (d *Devices) CanAccessDevice(_ core.User, deviceID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return !d.accessDenied[deviceID]
}

func (d *Devices) GetCapabilities(deviceID string) (core.CapabilitiesInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.caps[deviceID]
	return v, ok
}

func (d *Devices) SaveCapabilities(_ context.Context, deviceID string, caps core.CapabilitiesInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.caps[deviceID] = caps
	return nil
}

func (d *Devices) OnDeviceOptionsUpdated(fn func(deviceID, newName string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRenamed = fn
}

var _ ports.DeviceManager = (*Devices)(nil)
