package quilt

// Geometry describes the blob network's physical bundle layout. A
// bundle spans a fixed number of slots whose size is a network
// constant; both values derive from the shard count reported by the
// network.
type Geometry struct {
	ShardCount   int
	SlotCapacity int64
}

// Per-resource accounting overheads, fixed by the network's bundle
// format.
const (
	identifierOverhead = 40
	headerOverhead     = 8
)

// MaxSlots is the number of slots a bundle can span: the source-symbol
// count net of the Byzantine fraction of shards.
func (g Geometry) MaxSlots() int {
	return g.ShardCount - (g.ShardCount-1)/3
}

// TheoreticalMaxBundle is the largest bundle the network can store at
// all, regardless of any configured cap.
func (g Geometry) TheoreticalMaxBundle() int64 {
	return g.SlotCapacity * int64(g.MaxSlots())
}

// EffectiveCap clamps a configured bundle size to the theoretical
// maximum. The second return reports whether clamping occurred, so the
// caller can surface a warning.
func (g Geometry) EffectiveCap(configured int64) (int64, bool) {
	theoretical := g.TheoreticalMaxBundle()
	if configured <= 0 || configured > theoretical {
		return theoretical, configured > theoretical
	}
	return configured, false
}

// NeededSize is the slot space a resource of the given raw size
// occupies inside a bundle.
func NeededSize(unencodedSize int64) int64 {
	return unencodedSize + identifierOverhead + headerOverhead
}
