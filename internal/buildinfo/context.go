// Package buildinfo carries build-time metadata injected by the linker
package buildinfo

import (
	"fmt"
	"runtime"
)

// UnknownValue is reported for metadata the build did not set
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
// It is filled from -ldflags at startup and never persisted.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// Commit is the Git revision the binary was built from
	Commit string
}

// NewContext creates a build context
func NewContext(version, buildDate, commit string) *Context {
	return &Context{
		Version:   version,
		BuildDate: buildDate,
		Commit:    commit,
	}
}

// GetVersion returns the version or UnknownValue
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetCommit returns the short Git revision or UnknownValue
func (c *Context) GetCommit() string {
	if c == nil || c.Commit == "" {
		return UnknownValue
	}
	if len(c.Commit) > 12 {
		return c.Commit[:12]
	}
	return c.Commit
}

// String formats the metadata as a single version line
func (c *Context) String() string {
	return fmt.Sprintf("healthdb %s (commit %s, built %s, %s/%s)",
		c.GetVersion(), c.GetCommit(), c.GetBuildDate(), runtime.GOOS, runtime.GOARCH)
}
