package wsctrl

import (
	"sync"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/ports"
)

// Factory is a SessionControllerFactory that claims a session once
// its websocket connection has registered under the matching session id,
// and returns nil otherwise so the chain falls through to the next factory.
type Factory struct {
	mu    sync.Mutex
	byID  map[string]*Controller
}

// NewFactory builds an empty Factory.
func NewFactory() *Factory {
	return &Factory{byID: map[string]*Controller{}}
}

// Register binds a freshly-upgraded connection to a session id, replacing
// any previous controller for that id.
func (f *Factory) Register(sessionID string, ctrl *Controller) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[sessionID] = ctrl
}

// Unregister drops the binding, typically called once the read loop exits.
func (f *Factory) Unregister(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, sessionID)
}

// GetSessionController implements ports.SessionControllerFactory.
func (f *Factory) GetSessionController(sessionID, _ string, _ core.CapabilitiesInfo) ports.SessionController {
	f.mu.Lock()
	defer f.mu.Unlock()
	ctrl, ok := f.byID[sessionID]
	if !ok {
		return nil
	}
	return ctrl
}

var _ ports.SessionControllerFactory = (*Factory)(nil)
