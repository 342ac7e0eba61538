package monitor

import (
	"time"

	"github.com/pvemon/pvemon/pkg/config"
	"github.com/pvemon/pvemon/pkg/image"
)

// ImageUpdateResult is the per-image outcome of one engine run. Digest
// fields hold "-" when unresolved; remote version fields may hold "" (the
// wire format substitutes "-" at emit time).
type ImageUpdateResult struct {
	Type                 string `json:"type"`
	LocalCurrentDigest   string `json:"local_current_digest"`
	LocalCurrentVersion  string `json:"local_current_version"`
	RemoteCurrentDigest  string `json:"remote_current_digest"`
	RemoteCurrentVersion string `json:"remote_current_version"`
	RemoteLatestDigest   string `json:"remote_latest_digest"`
	RemoteLatestVersion  string `json:"remote_latest_version"`
	UpdateAvailable      bool   `json:"update_available"`
}

// ContainerReport collects the results for one host container. A host with
// no checkers attached appears with metadata only.
type ContainerReport struct {
	ContainerID   string `json:"container_id"`
	ContainerName string `json:"container_name"`
	HostType      string `json:"host_type"`

	// Images preserves the listing order so emitted telemetry is stable.
	Images  []string                     `json:"images,omitempty"`
	Results map[string]ImageUpdateResult `json:"results,omitempty"`
}

// Report is the outcome of one engine run. It is owned by that run and not
// persisted.
type Report struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Containers []ContainerReport `json:"containers"`
}

func newImageUpdateResult(info image.UpdateInfo) ImageUpdateResult {
	return ImageUpdateResult{
		Type:                 config.CheckerDocker,
		LocalCurrentDigest:   info.LocalCurrent.Digest,
		LocalCurrentVersion:  info.LocalCurrent.Version,
		RemoteCurrentDigest:  info.RemoteCurrent.Digest,
		RemoteCurrentVersion: info.RemoteCurrent.Version,
		RemoteLatestDigest:   info.RemoteLatest.Digest,
		RemoteLatestVersion:  info.RemoteLatest.Version,
		UpdateAvailable:      updateAvailable(info),
	}
}

// updateAvailable reports whether both digests resolved and the
// repository's latest manifest differs from the local one.
func updateAvailable(info image.UpdateInfo) bool {
	local := info.LocalCurrent.Digest
	latest := info.RemoteLatest.Digest
	if local == image.Unresolved || latest == image.Unresolved {
		return false
	}
	return local != latest
}
