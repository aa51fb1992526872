// Package conf holds build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/opentdf/contextvault/internal/conf.Version=v0.1.0"
package conf

var (
	Version     = "dev"
	VersionLong = "dev"
	BuildTime   = "unknown"
)
