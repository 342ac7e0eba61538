package image

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/pvemon/pvemon/pkg/pve"
)

// Unresolved is the sentinel for digest/version fields no source could
// provide.
const Unresolved = "-"

// ManifestCache is the resolver's view of the manifest store. The local
// pass never touches it; remote passes read and write under their kind.
type ManifestCache interface {
	Get(image string, kind ManifestKind) (ManifestRecord, bool)
	Put(image string, kind ManifestKind, m ManifestRecord)
}

// TagSearcher recovers a version string for (repository, digest) from a
// registry tag listing. Implementations memoize per engine run.
type TagSearcher interface {
	Search(ctx context.Context, repository, digest string) string
}

// ResolverConfig carries the checker settings the resolver needs.
type ResolverConfig struct {
	Architecture string
	OS           string

	// RegistryHubs marks repositories hosted outside the default hub;
	// tag search is skipped when the repository contains one of these
	// substrings.
	RegistryHubs []string
}

// UpdateInfo holds the resolved digest/version for each manifest kind of
// one image. Local fields end at the "-" sentinel; remote version fields
// may stay empty (the wire format substitutes "-" there).
type UpdateInfo struct {
	LocalCurrent  ManifestRecord
	RemoteCurrent ManifestRecord
	RemoteLatest  ManifestRecord
}

// Resolver resolves local, remote-current, and remote-latest manifest info
// for images running in host containers. It is synchronous; passes share
// one cache and one per-run tag searcher.
type Resolver struct {
	executor pve.Executor
	cache    ManifestCache
	search   TagSearcher
	cfg      ResolverConfig
	logger   *zap.Logger
}

// NewResolver creates a resolver. The searcher should live for exactly one
// engine run so its memoization table stays run-scoped.
func NewResolver(executor pve.Executor, cache ManifestCache, search TagSearcher, cfg ResolverConfig, logger *zap.Logger) *Resolver {
	return &Resolver{
		executor: executor,
		cache:    cache,
		search:   search,
		cfg:      cfg,
		logger:   logger,
	}
}

// Resolve runs the three passes for an image in the given container. When
// the image's tag is exactly "latest" the remote-latest result is the
// remote-current result and no extra lookup happens.
func (r *Resolver) Resolve(ctx context.Context, containerID, rawImage string) UpdateInfo {
	ref := ParseReference(rawImage)

	r.logger.Debug("Resolving image",
		zap.String("container_id", containerID),
		zap.String("image", ref.Raw))

	info := UpdateInfo{
		LocalCurrent:  r.resolveLocal(ctx, containerID, ref),
		RemoteCurrent: r.resolveRemote(ctx, containerID, ref, KindRemoteCurrent),
	}

	if ref.IsLatest() {
		info.RemoteLatest = info.RemoteCurrent
	} else {
		info.RemoteLatest = r.resolveRemote(ctx, containerID, ref.Latest(), KindRemoteLatest)
	}

	return info
}

// resolveLocal inspects the locally installed image. The cache is bypassed
// for this kind: local state must reflect the running container, not the
// previous run.
func (r *Resolver) resolveLocal(ctx context.Context, containerID string, ref Reference) ManifestRecord {
	// Execution failures are logged by the executor; captured output is
	// parsed as-is.
	lines, _ := r.executor.Run(ctx, containerID, pve.InspectCommand(ref.Raw))
	rec := ParseLocalManifest(strings.Join(lines, ""), r.cfg.Architecture)

	hubVersion := r.searchVersion(ctx, ref, rec.Digest)
	switch {
	case hubVersion != "":
		rec.Version = hubVersion
	case rec.Version != "":
		// keep the manifest label
	case ref.HasTag() && !ref.IsLatest():
		rec.Version = ref.Tag
	default:
		rec.Version = Unresolved
	}

	if rec.Digest == "" {
		rec.Digest = Unresolved
	}

	r.logger.Debug("Resolved local manifest",
		zap.String("image", ref.Raw),
		zap.String("digest", rec.Digest),
		zap.String("version", rec.Version))

	return rec
}

// resolveRemote inspects the registry manifest for ref under the given
// kind. The manifest fetch is cache-eligible; the tag search runs every
// time so version info follows the hub even on cache hits.
func (r *Resolver) resolveRemote(ctx context.Context, containerID string, ref Reference, kind ManifestKind) ManifestRecord {
	rec, hit := r.cache.Get(ref.Raw, kind)
	if !hit {
		lines, _ := r.executor.Run(ctx, containerID, pve.BuildxInspectCommand(ref.Raw))
		rec = ParseRemoteManifest(strings.Join(lines, ""), r.cfg.OS, r.cfg.Architecture)

		// The cached record is the parsed manifest, before hub search and
		// sentinel substitution.
		r.cache.Put(ref.Raw, kind, rec)
	}

	hubVersion := r.searchVersion(ctx, ref, rec.Digest)
	switch {
	case hubVersion != "":
		rec.Version = hubVersion
	case rec.Version != "":
		// keep the platform-scoped label
	case ref.HasTag() && !ref.IsLatest():
		rec.Version = ref.Tag
	}
	// Remote versions stay empty when nothing resolves; the wire format
	// substitutes "-" at emit time.

	if rec.Digest == "" {
		rec.Digest = Unresolved
	}

	r.logger.Debug("Resolved remote manifest",
		zap.String("image", ref.Raw),
		zap.String("kind", string(kind)),
		zap.Bool("cache_hit", hit),
		zap.String("digest", rec.Digest),
		zap.String("version", rec.Version))

	return rec
}

// searchVersion queries the tag searcher unless the repository lives on a
// configured non-default registry hub.
func (r *Resolver) searchVersion(ctx context.Context, ref Reference, digest string) string {
	for _, hub := range r.cfg.RegistryHubs {
		if strings.Contains(ref.Repository, hub) {
			return ""
		}
	}
	return r.search.Search(ctx, ref.Repository, digest)
}
