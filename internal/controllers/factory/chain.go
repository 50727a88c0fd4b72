// Package factory composes an ordered controller factory chain: the manager
// walks the chain in order and binds the first non-nil result.
package factory

import (
	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/ports"
)

// Chain is an ordered SessionControllerFactory composed of others.
type Chain struct {
	links []ports.SessionControllerFactory
}

// NewChain builds a Chain from links in priority order: the first link to
// return a non-nil controller wins.
func NewChain(links ...ports.SessionControllerFactory) *Chain {
	return &Chain{links: links}
}

// GetSessionController implements ports.SessionControllerFactory.
func (c *Chain) GetSessionController(sessionID, deviceID string, caps core.CapabilitiesInfo) ports.SessionController {
	for _, link := range c.links {
		if link == nil {
			continue
		}
		if ctrl := link.GetSessionController(sessionID, deviceID, caps); ctrl != nil {
			return ctrl
		}
	}
	return nil
}

var _ ports.SessionControllerFactory = (*Chain)(nil)
