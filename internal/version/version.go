// Package version is the single place the binary's version lives.
package version

const Version = "0.9.2"

// Set at build time via -ldflags "-X ...".
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Full returns the version with build metadata appended.
func Full() string {
	return "v" + Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}
