package version

import (
	"runtime"

	"github.com/opentdf/contextvault/internal/conf"
	"github.com/opentdf/contextvault/pkg/vault"
)

type VersionStat struct {
	Version     string `json:"version"`
	VersionLong string `json:"versionLong"`
	BuildTime   string `json:"buildTime"`
	GoVersion   string `json:"goVersion"`
	// PayloadVersion is the document payload format this build writes.
	PayloadVersion int `json:"payloadVersion"`
}

func GetVersion() VersionStat {
	return VersionStat{
		Version:        conf.Version,
		VersionLong:    conf.VersionLong,
		BuildTime:      conf.BuildTime,
		GoVersion:      runtime.Version(),
		PayloadVersion: vault.PayloadVersion,
	}
}
