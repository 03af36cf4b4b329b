package blobstore

import (
	"context"
	"fmt"
)

// BundleInput is one file to place into a bundle. The identifier tags
// the input so the caller can match the returned patch back to it.
type BundleInput struct {
	Identifier string
	Contents   []byte
}

// Patch is one stored file's sub-identifier within a bundle.
type Patch struct {
	Identifier string
	PatchID    string
}

// StoreResult is the outcome of one bundle store call.
type StoreResult struct {
	BundleID string
	Patches  []Patch
}

// PatchFor returns the patch matching an input identifier.
func (r *StoreResult) PatchFor(identifier string) (Patch, bool) {
	for _, p := range r.Patches {
		if p.Identifier == identifier {
			return p, true
		}
	}
	return Patch{}, false
}

// Store is the blob network capability consumed by the publish
// pipeline.
type Store interface {
	StoreBundle(ctx context.Context, inputs []BundleInput) (*StoreResult, error)
	ReadBundlePatch(ctx context.Context, bundleID, patchID string) ([]byte, error)
	ShardCount(ctx context.Context) (int, error)
}

// RequestError is a failed store request carrying the server status.
// Rate limiting and server-side failures are transient; everything
// else is not.
type RequestError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Transient reports whether retrying the request can succeed.
func (e *RequestError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
