package image

import (
	"encoding/json"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ManifestKind identifies which resolution pass produced a manifest. The
// string values double as cache file keys.
type ManifestKind string

const (
	KindCurrentLocal  ManifestKind = "current_local"
	KindRemoteCurrent ManifestKind = "remote_current"
	KindRemoteLatest  ManifestKind = "remote_latest"
)

// ManifestRecord holds the digest and version label extracted from an
// inspection command. The zero record means nothing was recoverable.
type ManifestRecord struct {
	Digest  string `json:"digest"`
	Version string `json:"version"`
}

// IsZero reports whether nothing was extracted.
func (m ManifestRecord) IsZero() bool {
	return m.Digest == "" && m.Version == ""
}

// localInspect mirrors the fields consumed from one docker inspect entry.
type localInspect struct {
	Architecture string   `json:"Architecture"`
	RepoDigests  []string `json:"RepoDigests"`
	Config       struct {
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
}

// buildxDocument mirrors the fields consumed from
// docker buildx imagetools inspect --format "{{json .}}". The image field
// is either a platform-keyed map of image configs or, for single-platform
// images, a bare image config; only the map form carries usable labels.
type buildxDocument struct {
	Manifest ocispec.Descriptor `json:"manifest"`
	Image    json.RawMessage    `json:"image"`
}

// ParseLocalManifest decodes docker inspect output and extracts the repo
// digest and OCI version label from the entries matching arch. Later
// matches win; malformed input yields the zero record.
func ParseLocalManifest(output string, arch string) ManifestRecord {
	var entries []localInspect
	if err := json.Unmarshal([]byte(output), &entries); err != nil {
		return ManifestRecord{}
	}

	var rec ManifestRecord
	for _, entry := range entries {
		if entry.Architecture != arch {
			continue
		}
		if len(entry.RepoDigests) > 0 {
			// RepoDigests entries look like "repo@sha256:..."; keep the
			// digest part only.
			parts := strings.Split(entry.RepoDigests[0], "@")
			rec.Digest = parts[len(parts)-1]
		}
		rec.Version = entry.Config.Labels[ocispec.AnnotationVersion]
	}
	return rec
}

// ParseRemoteManifest decodes buildx imagetools output and extracts the
// manifest digest plus the version label scoped to os/arch. Malformed
// input yields the zero record; a single-platform image field loses the
// label but keeps the digest.
func ParseRemoteManifest(output string, os, arch string) ManifestRecord {
	var doc buildxDocument
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return ManifestRecord{}
	}

	rec := ManifestRecord{Digest: string(doc.Manifest.Digest)}

	if len(doc.Image) > 0 {
		var platforms map[string]ocispec.Image
		if err := json.Unmarshal(doc.Image, &platforms); err == nil {
			if img, ok := platforms[os+"/"+arch]; ok {
				rec.Version = img.Config.Labels[ocispec.AnnotationVersion]
			}
		}
	}
	return rec
}
