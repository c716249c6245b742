package config

// Set at link time, for example:
//
//	go build -ldflags "-X revenuerelay/internal/config.version=1.2.3 \
//	    -X revenuerelay/internal/config.commit=$(git rev-parse --short HEAD)" ./cmd/relay
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
