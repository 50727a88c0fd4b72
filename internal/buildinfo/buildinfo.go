// Package buildinfo carries the version string reported by --version and
// embedded in startup logs and diagnostics output.
package buildinfo

// Version is overridden at link time via -ldflags "-X ...Version=vX.Y.Z".
var Version = "dev"
