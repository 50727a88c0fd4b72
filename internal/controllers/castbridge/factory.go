package castbridge

import (
	"log/slog"
	"sync"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/ports"
)

// AddressResolver maps a deviceId to the LAN address discovered for it.
type AddressResolver interface {
	ResolveAddress(deviceID string) (addr string, ok bool)
}

// Factory is a SessionControllerFactory that claims a session only when its
// device resolves to a known Chromecast address; otherwise it returns nil
// so the chain falls through (e.g. to wsctrl).
type Factory struct {
	resolver AddressResolver
	casts    CastFactory
	logger   *slog.Logger

	mu   sync.Mutex
	byID map[string]*Controller
}

// NewFactory builds a Factory bound to casts, the production CastFactory
// wired onto go2tv.app/go2tv/v2 (see internal/adapters/go2tv).
func NewFactory(resolver AddressResolver, casts CastFactory, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Factory{resolver: resolver, casts: casts, logger: logger, byID: map[string]*Controller{}}
}

// GetSessionController implements ports.SessionControllerFactory.
func (f *Factory) GetSessionController(sessionID, deviceID string, _ core.CapabilitiesInfo) ports.SessionController {
	f.mu.Lock()
	if ctrl, ok := f.byID[sessionID]; ok {
		f.mu.Unlock()
		return ctrl
	}
	f.mu.Unlock()

	if f.resolver == nil {
		return nil
	}
	addr, ok := f.resolver.ResolveAddress(deviceID)
	if !ok {
		return nil
	}

	ctrl, err := New(sessionID, addr, f.casts, f.logger)
	if err != nil {
		f.logger.Error("cast_controller_create_failed", slog.String("device_id", deviceID), slog.String("error", err.Error()))
		return nil
	}

	f.mu.Lock()
	f.byID[sessionID] = ctrl
	f.mu.Unlock()
	return ctrl
}

var _ ports.SessionControllerFactory = (*Factory)(nil)
