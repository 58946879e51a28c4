// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

var (
	// Version is the coronafit release
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for the version command and logs.
func String() string {
	return fmt.Sprintf("coronafit %s (%s, built %s)", Version, GitSHA, BuildTime)
}
