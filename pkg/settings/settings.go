// Package settings holds build metadata and the per-run options of the dashx
// CLI.
package settings

// CliBinaryName is the canonical binary name for this tool.
const CliBinaryName = "dashx"

// VersionInformation is populated at build time via ldflags.
var VersionInformation = VersionInfo{
	Commit:       "unknown",
	BuildVersion: "v0.0.0-nightly",
	BuildTime:    "unknown",
}

// VersionInfo is the commit, version and build time of the binary.
type VersionInfo struct {
	Commit       string `json:"commit" yaml:"commit"`
	BuildVersion string `json:"version" yaml:"version"`
	BuildTime    string `json:"build_time" yaml:"build_time"`
}

// Run holds the options of a single invocation.
type Run struct {
	// MinLogLevel is a zap level; -1 enables debug and V(1) logs.
	MinLogLevel int8
	IsQuiet     bool
	NoColor     bool
	ExitOnError bool
	// ConfigFile overrides config discovery when set.
	ConfigFile string
	// ModDir is the mod directory dashboards are loaded from.
	ModDir string
	// Theme overrides the configured default theme.
	Theme string
	// Width overrides terminal width detection when positive.
	Width int
}

// NewCliParams returns the defaults for a CLI run.
func NewCliParams() *Run {
	return &Run{ExitOnError: true}
}
