package version

import "runtime"

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/newtron-network/papibridge/pkg/version.Version=v1.0.0 \
//	  -X github.com/newtron-network/papibridge/pkg/version.GitCommit=abc1234 \
//	  -X github.com/newtron-network/papibridge/pkg/version.BuildDate=2026-01-01T00:00:00Z"
//
// The same values are stamped into both papi-exec and vpp-api-executor so a
// mismatched deployment shows up in the version output of either side.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a formatted version string for display.
func Info() string {
	return Version + " (" + GitCommit + ") built " + BuildDate
}

// Banner prefixes Info with the program name and Go runtime.
func Banner(prog string) string {
	return prog + " " + Info() + " " + runtime.Version()
}
