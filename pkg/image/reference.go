package image

import "strings"

// Reference is a decomposed image reference. The tag is kept verbatim: an
// absent tag and the literal tag "latest" are different values and the
// resolver treats them differently.
type Reference struct {
	Raw        string
	Repository string
	Tag        string
}

// ParseReference splits an image reference into repository and tag.
// Examples:
//   - "nginx:alpine" -> ("nginx", "alpine")
//   - "registry.io/org/repo:v1.2.3" -> ("registry.io/org/repo", "v1.2.3")
//   - "registry:5000/repo" -> ("registry:5000/repo", "") (port, not a tag)
//   - "nginx@sha256:abc123" -> ("nginx", "") (digest pin, no tag)
//   - "nginx" -> ("nginx", "")
func ParseReference(raw string) Reference {
	ref := Reference{Raw: raw, Repository: raw}

	// A digest pin carries no tag to extract.
	if atIndex := strings.LastIndex(raw, "@"); atIndex != -1 {
		ref.Repository = raw[:atIndex]
		return ref
	}

	lastColonIndex := strings.LastIndex(raw, ":")
	if lastColonIndex == -1 {
		return ref
	}

	tag := raw[lastColonIndex+1:]

	// A colon followed by a path segment is a registry port
	// (e.g. "registry:5000/repo"), not a tag separator.
	if strings.Contains(tag, "/") {
		return ref
	}

	ref.Repository = raw[:lastColonIndex]
	ref.Tag = tag
	return ref
}

// String returns the reference as given.
func (r Reference) String() string {
	return r.Raw
}

// HasTag reports whether an explicit tag is present.
func (r Reference) HasTag() bool {
	return r.Tag != ""
}

// IsLatest reports whether the explicit tag is the literal "latest".
func (r Reference) IsLatest() bool {
	return r.Tag == "latest"
}

// Latest returns the reference pointing at the repository's "latest" tag.
func (r Reference) Latest() Reference {
	return Reference{
		Raw:        r.Repository + ":latest",
		Repository: r.Repository,
		Tag:        "latest",
	}
}
