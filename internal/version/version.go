// Package version carries the build identity stamped in by the release
// ldflags. A plain go build identifies itself as a dev build.
package version

var (
	// Version is the release tag, or "dev" when built untagged.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// String renders the identity the daemons report at startup and on
// /api/health.
func String() string {
	return Version + " (" + GitSHA + ")"
}
