package internal

import (
	"log/slog"
	"runtime/debug"
	"time"
)

// Build information, read from the VCS stamp embedded by the Go toolchain.
var (
	BuildRevision      = "unknown"
	BuildRevisionTime  = time.Time{}
	BuildLocalModified = "unknown"
)

// BuildAttr groups the build information for structured logging.
func BuildAttr() slog.Attr {
	return slog.Group("build",
		slog.String("revision", BuildRevision),
		slog.Time("revisionTime", BuildRevisionTime),
		slog.String("modified", BuildLocalModified),
	)
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			BuildRevision = setting.Value
		case "vcs.time":
			t, err := time.Parse(time.RFC3339, setting.Value)
			if err != nil {
				continue
			}
			BuildRevisionTime = t
		case "vcs.modified":
			BuildLocalModified = setting.Value
		}
	}
}
