package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultHubAPI = "https://hub.docker.com"

	hubRequestTimeout = 30 * time.Second

	// One page is enough; version recovery only needs the recent tags.
	hubPageSize = 100
)

// HubSearcher recovers version strings for a digest from the Docker Hub
// tag-listing API. Responses are memoized by URL for the searcher's
// lifetime: one searcher serves one engine run, and a repeated identical
// request must not reach the network again, because immediate duplicate
// requests trigger the hub's anti-abuse blocking. Failed requests are
// memoized as empty results for the same reason.
type HubSearcher struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	memo    map[string][]hubTag
}

// NewHubSearcher creates a searcher against the public Docker Hub API.
func NewHubSearcher(logger *zap.Logger) *HubSearcher {
	return NewHubSearcherWithBaseURL(defaultHubAPI, logger)
}

// NewHubSearcherWithBaseURL creates a searcher against a custom API base URL.
func NewHubSearcherWithBaseURL(baseURL string, logger *zap.Logger) *HubSearcher {
	return &HubSearcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: hubRequestTimeout},
		logger:  logger,
		memo:    make(map[string][]hubTag),
	}
}

// hubTag is one entry of the hub tags listing.
type hubTag struct {
	Name   string     `json:"name"`
	Digest string     `json:"digest"`
	Images []hubImage `json:"images"`
}

// hubImage is one per-platform image of a hub tag.
type hubImage struct {
	Digest       string `json:"digest"`
	Architecture string `json:"architecture"`
	OS           string `json:"os"`
}

type hubTagsResponse struct {
	Results []hubTag `json:"results"`
}

// matches reports whether the tag points at the digest, either directly or
// through one of its per-platform images.
func (t hubTag) matches(digest string) bool {
	if t.Digest == digest {
		return true
	}
	for _, img := range t.Images {
		if img.Digest == digest {
			return true
		}
	}
	return false
}

// Search returns the tag names pointing at digest in the repository, joined
// with ", ". Names other than "latest" are preferred; if every match is
// "latest", all matches are returned. No match, or any HTTP or decode
// failure, yields an empty string.
func (h *HubSearcher) Search(ctx context.Context, repository, digest string) string {
	if repository == "" || digest == "" {
		return ""
	}

	url := h.tagsURL(repository)
	tags, seen := h.memo[url]
	if !seen {
		tags = h.fetch(ctx, url)
		h.memo[url] = tags
	}

	var matches, named []string
	for _, t := range tags {
		if !t.matches(digest) {
			continue
		}
		matches = append(matches, t.Name)
		if t.Name != "latest" {
			named = append(named, t.Name)
		}
	}

	if len(named) > 0 {
		return strings.Join(named, ", ")
	}
	return strings.Join(matches, ", ")
}

func (h *HubSearcher) tagsURL(repository string) string {
	return fmt.Sprintf("%s/v2/repositories/%s/tags?page_size=%d",
		h.baseURL, canonicalRepository(repository), hubPageSize)
}

func (h *HubSearcher) fetch(ctx context.Context, url string) []hubTag {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		h.logger.Error("Failed to build hub tag request",
			zap.String("url", url),
			zap.Error(err))
		return nil
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("Hub tag request failed",
			zap.String("url", url),
			zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.logger.Error("Hub tag request returned unexpected status",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil
	}

	var decoded hubTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		h.logger.Error("Failed to decode hub tag response",
			zap.String("url", url),
			zap.Error(err))
		return nil
	}

	return decoded.Results
}

// canonicalRepository prefixes the default "library" namespace when the
// repository has no namespace segment.
func canonicalRepository(repository string) string {
	if !strings.Contains(repository, "/") {
		return "library/" + repository
	}
	return repository
}
