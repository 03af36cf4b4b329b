package ledger

import (
	"github.com/loomworks/loom/internal/site"
)

// Call is one smart-contract invocation within a transaction batch.
// Arguments are plain serializable values; the wire form is produced
// by the transport adapter.
type Call struct {
	Function string         `cbor:"1,keyasint"`
	Args     map[string]any `cbor:"2,keyasint,omitempty"`
}

// The manifest-mutation vocabulary. Calls that operate on the site
// object reference the batch's seeded site input implicitly.

func CreateSiteCall(name string, timestampMillis int64) Call {
	return Call{Function: "create_site", Args: map[string]any{
		"name":      name,
		"timestamp": timestampMillis,
	}}
}

func CreateResourceCall(r *site.Resource) Call {
	headers := make(map[string]string, len(r.Headers))
	for _, name := range r.HeaderNames() {
		headers[name] = r.Headers[name]
	}
	return Call{Function: "create_resource", Args: map[string]any{
		"path":      r.Path,
		"bundle_id": r.Blob.BundleID,
		"patch_id":  r.Blob.PatchID,
		"hash":      r.ContentHash.String(),
		"headers":   headers,
	}}
}

func AddResourceCall(path string) Call {
	return Call{Function: "add_resource", Args: map[string]any{"path": path}}
}

func RemoveResourceIfExistsCall(path string) Call {
	return Call{Function: "remove_resource_if_exists", Args: map[string]any{"path": path}}
}

func CreateRoutesCall() Call {
	return Call{Function: "create_routes"}
}

func InsertRouteCall(from, to string) Call {
	return Call{Function: "insert_route", Args: map[string]any{"from": from, "to": to}}
}

func RemoveAllRoutesCall() Call {
	return Call{Function: "remove_all_routes"}
}

func UpdateMetadataCall(md *site.Metadata) Call {
	return Call{Function: "update_metadata", Args: map[string]any{
		"link":        md.Link,
		"image_url":   md.ImageURL,
		"description": md.Description,
		"project_url": md.ProjectURL,
		"creator":     md.Creator,
	}}
}

func UpdateNameCall(name string) Call {
	return Call{Function: "update_name", Args: map[string]any{"name": name}}
}

func TransferCall(recipient string) Call {
	return Call{Function: "transfer", Args: map[string]any{"recipient": recipient}}
}
