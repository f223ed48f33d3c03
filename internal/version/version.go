// Package version carries the tool identity stamped into every emitted
// SBOM: SPDX "Creator: Tool" lines and CycloneDX metadata.tools entries.
package version

import "fmt"

// ToolName is the name serializers embed in creator/tool fields.
const ToolName = "Heimdall"

// Build-time identity, overridden via -ldflags on release builds; the
// defaults identify a from-source build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// GetVersion returns the bare version string ("dev" for from-source
// builds).
func GetVersion() string {
	return Version
}

// GetFullVersion returns the version with commit and build date, for
// diagnostic output.
func GetFullVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}

// ToolID returns the "<tool>-<version>" form SPDX creator lines use.
func ToolID() string {
	return ToolName + "-" + GetVersion()
}
