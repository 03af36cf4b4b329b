package reconcile

import "github.com/loomworks/loom/internal/site"

type OpKind string

const (
	OpCreated   OpKind = "created"
	OpDeleted   OpKind = "deleted"
	OpUnchanged OpKind = "unchanged"
)

// ResourceOp is one entry of a reconciliation plan. Ops are immutable
// once produced and consumed exactly once by the packing and
// transaction stages.
type ResourceOp struct {
	Kind     OpKind
	Resource *site.Resource
	Reason   string
}

// RouteDiff is the outcome of comparing local and remote route maps.
// There is no partial merging: either the remote routes already match
// or they are replaced wholesale.
type RouteDiff struct {
	Changed bool
	Routes  map[string]string
}

// MetadataDiff mirrors RouteDiff for the site metadata fields.
type MetadataDiff struct {
	Changed  bool
	Metadata *site.Metadata
}

// NameDiff is binary: either the remote name is kept or updated.
type NameDiff struct {
	Changed bool
	Name    string
}

// Plan is the full output of one reconciliation pass.
type Plan struct {
	Ops      []ResourceOp
	Routes   RouteDiff
	Metadata MetadataDiff
	Name     NameDiff
}

// Created returns the resources flagged for creation, in plan order.
func (p *Plan) Created() []*site.Resource {
	var created []*site.Resource
	for _, op := range p.Ops {
		if op.Kind == OpCreated {
			created = append(created, op.Resource)
		}
	}
	return created
}

// Deleted returns the remote resources flagged for deletion.
func (p *Plan) Deleted() []*site.Resource {
	var deleted []*site.Resource
	for _, op := range p.Ops {
		if op.Kind == OpDeleted {
			deleted = append(deleted, op.Resource)
		}
	}
	return deleted
}

// Empty reports whether the plan requires no remote mutation at all.
func (p *Plan) Empty() bool {
	for _, op := range p.Ops {
		if op.Kind != OpUnchanged {
			return false
		}
	}
	return !p.Routes.Changed && !p.Metadata.Changed && !p.Name.Changed
}
