// Package version exposes build metadata set through -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time, e.g.
// -ldflags "-X github.com/NERVsystems/greenroute/pkg/version.BuildVersion=1.2.0"
var (
	BuildVersion = "dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// String returns a one-line version description.
func String() string {
	return fmt.Sprintf("greenroute %s (commit %s, built %s, %s)", BuildVersion, BuildCommit, BuildDate, runtime.Version())
}

// Info returns the build metadata as a map.
func Info() map[string]string {
	return map[string]string{
		"version":    BuildVersion,
		"commit":     BuildCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}
