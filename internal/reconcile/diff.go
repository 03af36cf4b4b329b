package reconcile

import (
	"reflect"

	"github.com/loomworks/loom/internal/site"
)

// Diff compares a local resource set against the last-known remote
// manifest and emits the minimal operation set that converges remote
// to local. A path present in both sets with a differing content hash
// is emitted as Created: a changed file is a create of a new blob, and
// the superseded remote blob is retired by the blob lifecycle, not
// here. Pure and deterministic; ops come out in path order.
func Diff(local, remote *site.ResourceSet) []ResourceOp {
	var ops []ResourceOp

	for _, path := range local.Paths() {
		localRes := local.Get(path)
		remoteRes := remote.Get(path)

		switch {
		case remoteRes == nil:
			ops = append(ops, ResourceOp{Kind: OpCreated, Resource: localRes, Reason: "new path"})
		case localRes.ContentHash != remoteRes.ContentHash:
			ops = append(ops, ResourceOp{Kind: OpCreated, Resource: localRes, Reason: "content changed"})
		default:
			ops = append(ops, ResourceOp{Kind: OpUnchanged, Resource: localRes, Reason: "up to date"})
		}
	}

	for _, path := range remote.Paths() {
		if local.Get(path) == nil {
			ops = append(ops, ResourceOp{Kind: OpDeleted, Resource: remote.Get(path), Reason: "removed locally"})
		}
	}

	return ops
}

// DiffRoutes compares route maps by value equality.
func DiffRoutes(local, remote map[string]string) RouteDiff {
	if routesEqual(local, remote) {
		return RouteDiff{}
	}
	return RouteDiff{Changed: true, Routes: local}
}

// DiffMetadata compares metadata by value equality. A nil local
// metadata means "no opinion" and never produces a change.
func DiffMetadata(local, remote *site.Metadata) MetadataDiff {
	if local == nil {
		return MetadataDiff{}
	}
	if remote != nil && reflect.DeepEqual(*local, *remote) {
		return MetadataDiff{}
	}
	return MetadataDiff{Changed: true, Metadata: local}
}

// DiffName compares site names. An empty local name means "keep".
func DiffName(local, remote string) NameDiff {
	if local == "" || local == remote {
		return NameDiff{}
	}
	return NameDiff{Changed: true, Name: local}
}

func routesEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
