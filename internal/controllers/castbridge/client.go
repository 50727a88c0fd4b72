// Package castbridge adapts a Chromecast connection (go2tv.app/go2tv/v2) as
// a SessionController. Unlike a one-shot cast trigger, this package keeps
// the connection bound for a session's lifetime and answers remote-control
// commands against it.
package castbridge

import "mediahub.app/sessioncore/internal/adapters"

// CastClient is the subset of go2tv's CastClient this package drives,
// reusing the adapters package's narrow interface rather than redeclaring
// it, so the same factory wiring serves both discovery and cast control.
type CastClient = adapters.CastClient

// CastFactory creates CastClient instances bound to a device address.
type CastFactory = adapters.CastFactory
