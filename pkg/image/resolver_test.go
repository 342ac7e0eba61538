package image_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/pvemon/pvemon/pkg/cache"
	"github.com/pvemon/pvemon/pkg/image"
	"github.com/pvemon/pvemon/pkg/pve"
)

const (
	localManifest = `[{"Architecture":"amd64","RepoDigests":["app/foo@sha256:aaa"],` +
		`"Config":{"Labels":{"org.opencontainers.image.version":"1.2.0"}}}]`
	localManifestNoLabel = `[{"Architecture":"amd64","RepoDigests":["app/foo@sha256:aaa"],` +
		`"Config":{"Labels":{}}}]`

	remoteManifest = `{"manifest":{"digest":"sha256:aaa"},"image":{"linux/amd64":` +
		`{"config":{"Labels":{"org.opencontainers.image.version":"1.2.0"}}}}}`
	remoteManifestLatest = `{"manifest":{"digest":"sha256:bbb"},"image":{"linux/amd64":` +
		`{"config":{"Labels":{"org.opencontainers.image.version":"2.0.0"}}}}}`
	remoteManifestNoLabel       = `{"manifest":{"digest":"sha256:aaa"},"image":{}}`
	remoteManifestLatestNoLabel = `{"manifest":{"digest":"sha256:bbb"},"image":{}}`
)

// MockExecutor implements pve.Executor for testing
type MockExecutor struct {
	// Map of containerID|command -> output lines
	responses map[string][]string
	callCount map[string]int // Track how many times each command ran
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		responses: make(map[string][]string),
		callCount: make(map[string]int),
	}
}

func (m *MockExecutor) Run(ctx context.Context, containerID, command string) ([]string, error) {
	key := containerID + "|" + command
	m.callCount[key]++

	lines, exists := m.responses[key]
	if !exists {
		return nil, errors.New("command failed")
	}
	return lines, nil
}

func (m *MockExecutor) AddResponse(containerID, command string, lines []string) {
	m.responses[containerID+"|"+command] = lines
}

func (m *MockExecutor) GetCallCount(containerID, command string) int {
	return m.callCount[containerID+"|"+command]
}

// MockTagSearcher mocks the TagSearcher interface
type MockTagSearcher struct {
	mock.Mock
}

func (m *MockTagSearcher) Search(ctx context.Context, repository, digest string) string {
	args := m.Called(ctx, repository, digest)
	return args.String(0)
}

var _ = Describe("Resolver", func() {
	var (
		executor *MockExecutor
		store    *cache.Store
		searcher *MockTagSearcher
		resolver *image.Resolver
	)

	newResolver := func(hubs ...string) *image.Resolver {
		return image.NewResolver(executor, store, searcher, image.ResolverConfig{
			Architecture: "amd64",
			OS:           "linux",
			RegistryHubs: hubs,
		}, zap.NewNop())
	}

	BeforeEach(func() {
		executor = NewMockExecutor()
		store = cache.NewStore("", 23*time.Hour, zap.NewNop())
		searcher = new(MockTagSearcher)
		resolver = newResolver()
	})

	Context("when every source answers", func() {
		BeforeEach(func() {
			executor.AddResponse("105", pve.InspectCommand("app/foo:1.2.0"), []string{localManifest})
			executor.AddResponse("105", pve.BuildxInspectCommand("app/foo:1.2.0"), []string{remoteManifest})
			executor.AddResponse("105", pve.BuildxInspectCommand("app/foo:latest"), []string{remoteManifestLatest})
		})

		It("should resolve all three manifests", func() {
			searcher.On("Search", mock.Anything, "app/foo", mock.Anything).Return("")

			info := resolver.Resolve(context.Background(), "105", "app/foo:1.2.0")

			Expect(info.LocalCurrent.Digest).To(Equal("sha256:aaa"))
			Expect(info.LocalCurrent.Version).To(Equal("1.2.0"))
			Expect(info.RemoteCurrent.Digest).To(Equal("sha256:aaa"))
			Expect(info.RemoteCurrent.Version).To(Equal("1.2.0"))
			Expect(info.RemoteLatest.Digest).To(Equal("sha256:bbb"))
			Expect(info.RemoteLatest.Version).To(Equal("2.0.0"))
		})

		It("should prefer the hub tag name over the manifest label", func() {
			searcher.On("Search", mock.Anything, "app/foo", "sha256:aaa").Return("1.2.1")
			searcher.On("Search", mock.Anything, "app/foo", "sha256:bbb").Return("2.0.1")

			info := resolver.Resolve(context.Background(), "105", "app/foo:1.2.0")

			Expect(info.LocalCurrent.Version).To(Equal("1.2.1"))
			Expect(info.RemoteCurrent.Version).To(Equal("1.2.1"))
			Expect(info.RemoteLatest.Version).To(Equal("2.0.1"))
			searcher.AssertExpectations(GinkgoT())
		})
	})

	Context("when manifests carry no version label", func() {
		BeforeEach(func() {
			executor.AddResponse("105", pve.InspectCommand("app/foo:1.2.0"), []string{localManifestNoLabel})
			executor.AddResponse("105", pve.BuildxInspectCommand("app/foo:1.2.0"), []string{remoteManifestNoLabel})
			executor.AddResponse("105", pve.BuildxInspectCommand("app/foo:latest"), []string{remoteManifestLatestNoLabel})
		})

		It("should fall back to the image tag", func() {
			searcher.On("Search", mock.Anything, "app/foo", mock.Anything).Return("")

			info := resolver.Resolve(context.Background(), "105", "app/foo:1.2.0")

			Expect(info.LocalCurrent.Version).To(Equal("1.2.0"))
			Expect(info.RemoteCurrent.Version).To(Equal("1.2.0"))
			Expect(info.RemoteLatest.Version).To(Equal(""), "the latest tag is not a version")
		})
	})

	Context("when the image runs the latest tag", func() {
		It("should reuse the remote-current manifest for remote-latest", func() {
			executor.AddResponse("105", pve.InspectCommand("app/foo:latest"), []string{localManifest})
			executor.AddResponse("105", pve.BuildxInspectCommand("app/foo:latest"), []string{remoteManifestLatest})
			searcher.On("Search", mock.Anything, "app/foo", mock.Anything).Return("")

			info := resolver.Resolve(context.Background(), "105", "app/foo:latest")

			Expect(info.RemoteLatest).To(Equal(info.RemoteCurrent))
			Expect(executor.GetCallCount("105", pve.BuildxInspectCommand("app/foo:latest"))).To(Equal(1), "Should inspect the registry once, not twice")
		})
	})

	Context("when commands fail", func() {
		It("should fall back to sentinels locally and keep remote versions empty", func() {
			searcher.On("Search", mock.Anything, "app/foo", mock.Anything).Return("")

			info := resolver.Resolve(context.Background(), "105", "app/foo")

			Expect(info.LocalCurrent.Digest).To(Equal("-"))
			Expect(info.LocalCurrent.Version).To(Equal("-"))
			Expect(info.RemoteCurrent.Digest).To(Equal("-"))
			Expect(info.RemoteCurrent.Version).To(Equal(""))
			Expect(info.RemoteLatest.Digest).To(Equal("-"))
			Expect(info.RemoteLatest.Version).To(Equal(""))
		})
	})

	Context("caching", func() {
		It("should bypass the cache for local manifests", func() {
			store.Put("app/foo:1.2.0", image.KindCurrentLocal, image.ManifestRecord{Digest: "sha256:stale", Version: "0.0.1"})
			executor.AddResponse("105", pve.InspectCommand("app/foo:1.2.0"), []string{localManifest})
			searcher.On("Search", mock.Anything, "app/foo", mock.Anything).Return("")

			info := resolver.Resolve(context.Background(), "105", "app/foo:1.2.0")

			Expect(info.LocalCurrent.Digest).To(Equal("sha256:aaa"), "Should inspect the container, not read the cache")
		})

		It("should serve remote manifests from the cache", func() {
			store.Put("app/foo:1.2.0", image.KindRemoteCurrent, image.ManifestRecord{Digest: "sha256:ccc", Version: "3.0.0"})
			store.Put("app/foo:latest", image.KindRemoteLatest, image.ManifestRecord{Digest: "sha256:ddd", Version: "4.0.0"})
			executor.AddResponse("105", pve.InspectCommand("app/foo:1.2.0"), []string{localManifest})
			searcher.On("Search", mock.Anything, "app/foo", mock.Anything).Return("")

			info := resolver.Resolve(context.Background(), "105", "app/foo:1.2.0")

			Expect(info.RemoteCurrent.Digest).To(Equal("sha256:ccc"))
			Expect(info.RemoteLatest.Digest).To(Equal("sha256:ddd"))
			Expect(executor.GetCallCount("105", pve.BuildxInspectCommand("app/foo:1.2.0"))).To(Equal(0), "Should use cache, not inspect the registry")
			Expect(executor.GetCallCount("105", pve.BuildxInspectCommand("app/foo:latest"))).To(Equal(0), "Should use cache, not inspect the registry")
		})

		It("should still search the hub on cache hits", func() {
			store.Put("app/foo:1.2.0", image.KindRemoteCurrent, image.ManifestRecord{Digest: "sha256:ccc", Version: "3.0.0"})
			store.Put("app/foo:latest", image.KindRemoteLatest, image.ManifestRecord{Digest: "sha256:ddd", Version: "4.0.0"})
			executor.AddResponse("105", pve.InspectCommand("app/foo:1.2.0"), []string{localManifest})
			searcher.On("Search", mock.Anything, "app/foo", "sha256:aaa").Return("")
			searcher.On("Search", mock.Anything, "app/foo", "sha256:ccc").Return("5.5.5")
			searcher.On("Search", mock.Anything, "app/foo", "sha256:ddd").Return("6.6.6")

			info := resolver.Resolve(context.Background(), "105", "app/foo:1.2.0")

			Expect(info.RemoteCurrent.Version).To(Equal("5.5.5"))
			Expect(info.RemoteLatest.Version).To(Equal("6.6.6"))
			searcher.AssertExpectations(GinkgoT())
		})

		It("should store the parsed manifest before the hub search", func() {
			executor.AddResponse("105", pve.InspectCommand("app/foo:1.2.0"), []string{localManifest})
			executor.AddResponse("105", pve.BuildxInspectCommand("app/foo:1.2.0"), []string{remoteManifest})
			executor.AddResponse("105", pve.BuildxInspectCommand("app/foo:latest"), []string{remoteManifestLatest})
			searcher.On("Search", mock.Anything, "app/foo", mock.Anything).Return("9.9.9")

			info := resolver.Resolve(context.Background(), "105", "app/foo:1.2.0")
			Expect(info.RemoteCurrent.Version).To(Equal("9.9.9"))

			cached, ok := store.Get("app/foo:1.2.0", image.KindRemoteCurrent)
			Expect(ok).To(BeTrue())
			Expect(cached.Digest).To(Equal("sha256:aaa"))
			Expect(cached.Version).To(Equal("1.2.0"), "Cached version comes from the manifest, not the hub")
		})
	})

	Context("with registry hubs configured", func() {
		It("should skip the tag search for repositories hosted there", func() {
			resolver = newResolver("lscr.io")
			executor.AddResponse("105", pve.InspectCommand("lscr.io/linuxserver/transmission:4.0.5"), []string{localManifestNoLabel})
			executor.AddResponse("105", pve.BuildxInspectCommand("lscr.io/linuxserver/transmission:4.0.5"), []string{remoteManifestNoLabel})
			executor.AddResponse("105", pve.BuildxInspectCommand("lscr.io/linuxserver/transmission:latest"), []string{remoteManifestLatestNoLabel})

			info := resolver.Resolve(context.Background(), "105", "lscr.io/linuxserver/transmission:4.0.5")

			Expect(searcher.Calls).To(BeEmpty(), "Should not query the hub for other registries")
			Expect(info.LocalCurrent.Version).To(Equal("4.0.5"))
			Expect(info.RemoteCurrent.Version).To(Equal("4.0.5"))
		})
	})
})
