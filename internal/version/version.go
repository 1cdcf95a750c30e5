// Package version provides build information for the nesapu library
// and its demo command.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

var (
	// These are set at build time via -ldflags.
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo is the detailed build record reported by -version.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
	Platform  string
	Arch      string
}

// GetBuildInfo fills in VCS fields from the embedded module build
// info when the linker hasn't set them explicitly.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == "unknown" {
					info.GitCommit = setting.Value
				}
			case "vcs.time":
				if info.BuildTime == "unknown" {
					info.BuildTime = setting.Value
				}
			}
		}
	}

	return info
}

// GetDetailedVersion formats BuildInfo as a single line. The -version
// flag prints PrintBuildInfo's multi-line form instead.
func GetDetailedVersion() string {
	info := GetBuildInfo()

	s := fmt.Sprintf("nesapu version %s", info.Version)
	if info.GitCommit != "unknown" {
		commit := info.GitCommit
		if len(commit) >= 7 {
			commit = commit[:7]
		}
		s += fmt.Sprintf(" (commit %s)", commit)
	}
	if info.BuildTime != "unknown" {
		if parsed, err := time.Parse(time.RFC3339, info.BuildTime); err == nil {
			s += fmt.Sprintf(" built on %s", parsed.Format("2006-01-02 15:04:05"))
		} else {
			s += fmt.Sprintf(" built on %s", info.BuildTime)
		}
	}
	s += fmt.Sprintf(" with %s for %s/%s", info.GoVersion, info.Platform, info.Arch)
	return s
}

// PrintBuildInfo prints formatted build information to stdout.
func PrintBuildInfo() {
	info := GetBuildInfo()
	fmt.Printf("nesapu - pulse-channel APU and sprite-DMA library\n")
	fmt.Printf("Version:    %s\n", info.Version)
	fmt.Printf("Git Commit: %s\n", info.GitCommit)
	fmt.Printf("Build Time: %s\n", info.BuildTime)
	fmt.Printf("Go Version: %s\n", info.GoVersion)
	fmt.Printf("Platform:   %s/%s\n", info.Platform, info.Arch)
}
