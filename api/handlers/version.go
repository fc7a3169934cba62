package handlers

import (
	"net/http"
	"sync/atomic"
)

// VersionResponse contains the build version info.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

var buildInfo atomic.Pointer[VersionResponse]

func init() {
	buildInfo.Store(&VersionResponse{Version: "dev", Commit: "none", Date: "unknown"})
}

// SetBuildInfo records the LDFLAGS build metadata served by GetVersion.
func SetBuildInfo(version, commit, date string) {
	buildInfo.Store(&VersionResponse{Version: version, Commit: commit, Date: date})
}

// GetVersion returns the current build version.
func GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildInfo.Load())
}
