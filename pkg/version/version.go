// Package version exposes the build version of the bulkproc binary.
package version

// version is overridden at build time with
// -ldflags "-X github.com/bulkproc/bulkproc/pkg/version.version=v1.2.3".
var version = "dev"

// GetVersion returns the build version string.
func GetVersion() string {
	return version
}
