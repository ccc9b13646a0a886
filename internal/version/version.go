package version

import (
	"runtime"
	"runtime/debug"
	"slices"
)

var version = "dev"

// Version returns the current version string with the linked ACP SDK
// version suffixed, when build info is available.
func Version() string {
	acpVersion := ACPSDKVersion()
	if acpVersion != "" {
		return version + " (acp-sdk " + acpVersion + ")"
	}
	return version
}

// RawVersion returns the semantic version string without any suffix.
func RawVersion() string {
	return version
}

// ACPSDKVersion returns the linked coder/acp-go-sdk version from build info,
// the library the planner subprocess boundary is built on.
func ACPSDKVersion() string {
	acp, _ := readBuildInfo()
	return acp
}

// GoVersion returns the Go toolchain version used for the build.
func GoVersion() string {
	return runtime.Version()
}

// readBuildInfo reads debug.ReadBuildInfo once and extracts both the linked
// acp-go-sdk version and the VCS revision.
func readBuildInfo() (string, string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	var acpVersion, commit string
	if idx := slices.IndexFunc(info.Deps, func(dep *debug.Module) bool {
		return dep.Path == "github.com/coder/acp-go-sdk"
	}); idx >= 0 {
		acpVersion = info.Deps[idx].Version
	}
	if idx := slices.IndexFunc(info.Settings, func(s debug.BuildSetting) bool {
		return s.Key == "vcs.revision"
	}); idx >= 0 {
		val := info.Settings[idx].Value
		if len(val) > 12 {
			commit = val[:12]
		} else {
			commit = val
		}
	}
	return acpVersion, commit
}

// Info holds structured version information for machine-readable output.
type Info struct {
	Version    string   `json:"version"`
	ACPVersion string   `json:"acpSdkVersion,omitempty"`
	Platform   Platform `json:"platform"`
	GoVersion  string   `json:"goVersion"`
	GitCommit  string   `json:"gitCommit,omitempty"`
}

// Platform describes the OS and architecture.
type Platform struct {
	OS   string `json:"os"`
	Arch string `json:"arch"`
}

// GetInfo returns structured version information.
func GetInfo() Info {
	acpVersion, commit := readBuildInfo()
	return Info{
		Version:    RawVersion(),
		ACPVersion: acpVersion,
		Platform: Platform{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
		GoVersion: GoVersion(),
		GitCommit: commit,
	}
}
