package publish

import (
	"fmt"

	"github.com/loomworks/loom/internal/codec"
	"github.com/loomworks/loom/internal/ledger"
	"github.com/loomworks/loom/internal/site"
)

// Manifest is the decoded contents of a site object: the ledger's
// record of what the published site looks like.
type Manifest struct {
	Name      string             `cbor:"1,keyasint"`
	Resources []ManifestResource `cbor:"2,keyasint,omitempty"`
	Routes    map[string]string  `cbor:"3,keyasint,omitempty"`
	Metadata  *site.Metadata     `cbor:"4,keyasint,omitempty"`
}

type ManifestResource struct {
	Path     string            `cbor:"1,keyasint"`
	BundleID string            `cbor:"2,keyasint"`
	PatchID  string            `cbor:"3,keyasint,omitempty"`
	Hash     site.Digest       `cbor:"4,keyasint"`
	Headers  map[string]string `cbor:"5,keyasint,omitempty"`
}

// DecodeManifest parses a fetched site object.
func DecodeManifest(obj *ledger.Object) (*Manifest, error) {
	var m Manifest
	if err := codec.Unmarshal(obj.Contents, &m); err != nil {
		return nil, fmt.Errorf("decode site object %s: %w", obj.Ref.ID, err)
	}
	return &m, nil
}

// ResourceSet converts the manifest's resource list into the remote
// side of a reconciliation pass.
func (m *Manifest) ResourceSet() *site.ResourceSet {
	set := site.NewResourceSet()
	for _, mr := range m.Resources {
		set.Add(&site.Resource{
			Path:        mr.Path,
			ContentHash: mr.Hash,
			Headers:     site.NormalizeHeaders(mr.Headers),
			Blob:        site.BlobRef{BundleID: mr.BundleID, PatchID: mr.PatchID},
		})
	}
	return set
}
