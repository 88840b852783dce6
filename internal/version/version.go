// Package version carries build identification, stamped with -ldflags at
// release time.
package version

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the short git hash of the build.
	Commit = "unknown"
)
