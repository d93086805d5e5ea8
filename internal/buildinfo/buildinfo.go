// Package buildinfo holds build-time metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/visorlab/visor/internal/buildinfo.version=v1.2.0 \
//	  -X github.com/visorlab/visor/internal/buildinfo.buildDate=2026-01-01"
package buildinfo

import "runtime/debug"

const unknown = "unknown"

var (
	version   string
	buildDate string
)

// Context contains build metadata that is not user-configurable.
type Context struct {
	Version   string
	BuildDate string
}

// Current returns the metadata of the running binary. Without ldflags the
// module version recorded by the Go toolchain is used when available.
func Current() Context {
	c := Context{Version: version, BuildDate: buildDate}
	if c.Version == "" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			c.Version = bi.Main.Version
		}
	}
	return c
}

// GetVersion returns the version or "unknown".
func (c Context) GetVersion() string {
	if c.Version == "" {
		return unknown
	}
	return c.Version
}

// GetBuildDate returns the build date or "unknown".
func (c Context) GetBuildDate() string {
	if c.BuildDate == "" {
		return unknown
	}
	return c.BuildDate
}

// String formats the metadata for --version output.
func (c Context) String() string {
	return c.GetVersion() + " (built " + c.GetBuildDate() + ")"
}
