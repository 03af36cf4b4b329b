package site

import (
	"sort"
	"strings"
)

// BlobRef locates a resource's bytes in the blob network. PatchID is
// set when the resource lives inside a shared bundle rather than a
// blob of its own.
type BlobRef struct {
	BundleID string
	PatchID  string
}

// Resource is a single published file.
type Resource struct {
	// Path is canonical: forward slashes, leading slash, unique
	// within a manifest.
	Path          string
	ContentHash   Digest
	UnencodedSize int64
	// Headers keys are lower-cased before storage or comparison.
	Headers map[string]string
	Blob    BlobRef
	// LocalPath is only set on locally-scanned resources and is
	// never serialized into the manifest.
	LocalPath string
}

// Same reports whether two resources are semantically identical: equal
// path and equal content hash. Blob references are ignored because the
// same bytes may live in different bundles after repacking.
func (r *Resource) Same(other *Resource) bool {
	return r.Path == other.Path && r.ContentHash == other.ContentHash
}

// HeaderNames returns the resource's header names in sorted order.
func (r *Resource) HeaderNames() []string {
	names := make([]string, 0, len(r.Headers))
	for name := range r.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CanonicalPath normalizes a relative or absolute file path into the
// manifest path form: forward slashes and a single leading slash.
func CanonicalPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return "/" + strings.TrimLeft(p, "/")
}

// NormalizeHeaders lower-cases all header names. On duplicate names
// after lower-casing, the last value wins.
func NormalizeHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out[strings.ToLower(name)] = headers[name]
	}
	return out
}

// ResourceSet is a collection of resources keyed by path.
type ResourceSet struct {
	resources map[string]*Resource
}

func NewResourceSet() *ResourceSet {
	return &ResourceSet{resources: make(map[string]*Resource)}
}

// Add inserts a resource, replacing any existing resource at the same
// path.
func (s *ResourceSet) Add(r *Resource) {
	s.resources[r.Path] = r
}

// Get returns the resource at path, or nil.
func (s *ResourceSet) Get(path string) *Resource {
	return s.resources[path]
}

func (s *ResourceSet) Len() int {
	return len(s.resources)
}

// Paths returns all paths in sorted order.
func (s *ResourceSet) Paths() []string {
	paths := make([]string, 0, len(s.resources))
	for p := range s.resources {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// All returns the resources in path order.
func (s *ResourceSet) All() []*Resource {
	resources := make([]*Resource, 0, len(s.resources))
	for _, p := range s.Paths() {
		resources = append(resources, s.resources[p])
	}
	return resources
}
