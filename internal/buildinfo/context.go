// Package buildinfo holds build-time metadata injected through -ldflags.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not set at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// version holds the Git version tag from build
	version string

	// buildDate is the time when the binary was built
	buildDate string
}

// NewContext creates a build context.
func NewContext(version, buildDate string) *Context {
	return &Context{version: version, buildDate: buildDate}
}

// Version returns the build version, or UnknownValue.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build date, or UnknownValue.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// Release returns the release identifier reported with telemetry events.
func (c *Context) Release() string {
	return "majorvocal@" + c.Version()
}

// String formats the metadata for the version command.
func (c *Context) String() string {
	return fmt.Sprintf("majorvocal %s (built %s)", c.Version(), c.BuildDate())
}
