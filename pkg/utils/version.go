// Package utils holds build metadata stamped in at link time.
package utils

import "fmt"

// Set with -ldflags "-X github.com/aona-labs/aona/pkg/utils.Version=..." and
// friends by the release build.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent identifies aona on outbound HTTP requests.
func UserAgent() string {
	return "aona/" + Version
}

// BuildInfo is the multi-line description printed by "aona version".
func BuildInfo() string {
	return fmt.Sprintf("Version: %s\nSha: %s\nBuilt at: %s", Version, Sha, Buildtime)
}
