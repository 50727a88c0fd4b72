package memory

import (
	"context"
	"testing"

	"mediahub.app/sessioncore/internal/core"
)

func TestDevices_RegisterDeviceDoesNotOverwriteCustomName(t *testing.T) {
	d := NewDevices()
	ctx := context.Background()
	if err := d.RegisterDevice(ctx, "device-1", "first-name", "app", "1.0", "user-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	d.Rename("device-1", "renamed-by-user")

	if err := d.RegisterDevice(ctx, "device-1", "second-name", "app", "1.0", "user-1"); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	info, ok := d.GetDevice("device-1")
	if !ok || info.CustomName != "renamed-by-user" {
		t.Fatalf("expected the custom rename to survive re-registration, got %+v", info)
	}
}

func TestDevices_RenameFiresCallback(t *testing.T) {
	d := NewDevices()
	var gotDeviceID, gotName string
	d.OnDeviceOptionsUpdated(func(deviceID, newName string) {
		gotDeviceID = deviceID
		gotName = newName
	})

	d.Rename("device-1", "living room tv")
	if gotDeviceID != "device-1" || gotName != "living room tv" {
		t.Fatalf("expected callback to fire with the rename, got %q/%q", gotDeviceID, gotName)
	}
}

func TestDevices_CanAccessDeviceRespectsDenyList(t *testing.T) {
	d := NewDevices()
	if !d.CanAccessDevice(core.User{}, "device-1") {
		t.Fatalf("expected access by default")
	}
	d.DenyAccess("device-1")
	if d.CanAccessDevice(core.User{}, "device-1") {
		t.Fatalf("expected access to be denied after DenyAccess")
	}
}

func TestDevices_SaveAndGetCapabilitiesRoundTrip(t *testing.T) {
	d := NewDevices()
	caps := core.CapabilitiesInfo{PlayableMediaTypes: []string{"Video", "Audio"}}
	if err := d.SaveCapabilities(context.Background(), "device-1", caps); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok := d.GetCapabilities("device-1")
	if !ok || len(got.PlayableMediaTypes) != 2 {
		t.Fatalf("expected saved capabilities to round-trip, got %+v", got)
	}
}
