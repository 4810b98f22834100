package api

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// BuildInfo is stamped in through ldflags at build time.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

func (b BuildInfo) withDefaults() BuildInfo {
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.GitCommit == "" {
		b.GitCommit = "unknown"
	}
	if b.BuildDate == "" {
		b.BuildDate = "unknown"
	}
	return b
}

type versionResponse struct {
	Success   bool   `json:"success"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// VersionHandler reports build metadata.
func VersionHandler(build BuildInfo) http.HandlerFunc {
	build = build.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(versionResponse{
			Success:   true,
			Version:   build.Version,
			GitCommit: build.GitCommit,
			BuildDate: build.BuildDate,
			GoVersion: runtime.Version(),
		})
	}
}
