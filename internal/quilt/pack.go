package quilt

import (
	"fmt"

	"github.com/loomworks/loom/internal/site"
)

// Entry is one resource assigned to a chunk, with its slot-space
// accounting size.
type Entry struct {
	Resource   *site.Resource
	NeededSize int64
}

// Chunk is an ordered group of resources that together fit in one
// bundle. A chunk is consumed by exactly one store call and discarded
// once its patch identifiers are folded back into the resources.
type Chunk struct {
	Entries []Entry
}

// Size is the summed accounting size of the chunk's entries.
func (c *Chunk) Size() int64 {
	var total int64
	for _, e := range c.Entries {
		total += e.NeededSize
	}
	return total
}

// TooLargeError reports a resource that no bundle can ever hold. This
// is a configuration problem, not a retriable failure.
type TooLargeError struct {
	Path       string
	NeededSize int64
	Maximum    int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("resource %s needs %d bytes but the network's maximum bundle is %d bytes",
		e.Path, e.NeededSize, e.Maximum)
}

// PackResult is the output of one packing pass.
type PackResult struct {
	Chunks []Chunk
	// CapClamped is set when the configured bundle size exceeded the
	// theoretical maximum and was reduced to it.
	CapClamped bool
}

// Pack groups resources into bundle-sized chunks with a single
// left-to-right first-fit pass. Input order is preserved: chunks come
// out in the order they were opened, which keeps packing deterministic
// and streaming-friendly at the cost of optimal density.
//
// A resource too large for the effective cap but still storable by the
// network is placed alone in its own chunk; it does not disturb the
// chunk being accumulated. A resource exceeding the theoretical
// maximum fails the whole pass immediately.
func Pack(resources []*site.Resource, maxBundleSize int64, geo Geometry) (*PackResult, error) {
	effectiveCap, clamped := geo.EffectiveCap(maxBundleSize)
	theoretical := geo.TheoreticalMaxBundle()
	maxSlots := geo.MaxSlots()
	if maxSlots <= 0 || theoretical <= 0 {
		return nil, fmt.Errorf("unusable bundle geometry: %d shards with %d-byte slots", geo.ShardCount, geo.SlotCapacity)
	}
	columnCapacity := effectiveCap / int64(maxSlots)
	if columnCapacity <= 0 {
		return nil, fmt.Errorf("bundle cap %d is below the column granularity of %d slots", effectiveCap, maxSlots)
	}

	result := &PackResult{CapClamped: clamped}
	var current Chunk
	remainingColumns := maxSlots

	for _, resource := range resources {
		needed := NeededSize(resource.UnencodedSize)

		if needed > theoretical {
			return nil, &TooLargeError{Path: resource.Path, NeededSize: needed, Maximum: theoretical}
		}

		if needed > effectiveCap {
			// Storable by the network, just not alongside siblings.
			result.Chunks = append(result.Chunks, Chunk{Entries: []Entry{{Resource: resource, NeededSize: needed}}})
			continue
		}

		columnsNeeded := int((needed + columnCapacity - 1) / columnCapacity)
		if columnsNeeded > remainingColumns {
			if len(current.Entries) > 0 {
				result.Chunks = append(result.Chunks, current)
				current = Chunk{}
			}
			remainingColumns = maxSlots
		}
		current.Entries = append(current.Entries, Entry{Resource: resource, NeededSize: needed})
		remainingColumns -= columnsNeeded
	}

	if len(current.Entries) > 0 {
		result.Chunks = append(result.Chunks, current)
	}

	return result, nil
}
