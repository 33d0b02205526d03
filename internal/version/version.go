// Package version exposes build metadata injected at link time, e.g.
//
//	go build -ldflags "-X github.com/betforbes/authflow/internal/version.version=v0.2.0 \
//	  -X github.com/betforbes/authflow/internal/version.gitCommit=$(git rev-parse --short HEAD) \
//	  -X github.com/betforbes/authflow/internal/version.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
}

func Get() Info {
	return Info{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
	}
}
