package layer

import (
	"fmt"

	"github.com/dshills/diagrid/internal/event/events"
)

// Z-order is a flat map nodeID -> integer, monotonically advanced by a
// counter. The registry writes assigned indices back onto the stored node
// through the ZWriter and announces changes with zorder.changed.

// Assign gives a node the next z-index. Wired to node.created by the
// document for nodes created without a stacking position.
func (r *Registry) Assign(nodeID string) int {
	r.mu.Lock()
	r.zCounter++
	z := r.zCounter
	r.zIndex[nodeID] = z
	r.layers[r.defaultID].nodes[nodeID] = struct{}{}
	r.mu.Unlock()

	r.writeZ(nodeID, z)
	return z
}

// Adopt records an externally supplied z-index (deserialized or restored
// nodes) and advances the counter past it so later assignments stack above.
func (r *Registry) Adopt(nodeID string, z int) {
	r.mu.Lock()
	r.zIndex[nodeID] = z
	if z > r.zCounter {
		r.zCounter = z
	}
	r.layers[r.defaultID].nodes[nodeID] = struct{}{}
	r.mu.Unlock()

	r.writeZ(nodeID, z)
}

// ZIndexOf returns a node's z-index.
func (r *Registry) ZIndexOf(nodeID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	z, ok := r.zIndex[nodeID]
	return z, ok
}

// BringToFront restacks the node above every other: max+1.
func (r *Registry) BringToFront(nodeID string) error {
	return r.restack(nodeID, func(minZ, maxZ, _ int) int { return maxZ + 1 })
}

// SendToBack restacks the node below every other: min-1.
func (r *Registry) SendToBack(nodeID string) error {
	return r.restack(nodeID, func(minZ, maxZ, _ int) int { return minZ - 1 })
}

// BringForward nudges the node's z-index up by one.
func (r *Registry) BringForward(nodeID string) error {
	return r.restack(nodeID, func(_, _, cur int) int { return cur + 1 })
}

// SendBackward nudges the node's z-index down by one.
func (r *Registry) SendBackward(nodeID string) error {
	return r.restack(nodeID, func(_, _, cur int) int { return cur - 1 })
}

// restack computes a new z-index from the current min, max, and value.
func (r *Registry) restack(nodeID string, compute func(minZ, maxZ, cur int) int) error {
	r.mu.Lock()
	cur, ok := r.zIndex[nodeID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNodeNotTracked, nodeID)
	}
	minZ, maxZ := cur, cur
	for _, z := range r.zIndex {
		if z < minZ {
			minZ = z
		}
		if z > maxZ {
			maxZ = z
		}
	}
	z := compute(minZ, maxZ, cur)
	r.zIndex[nodeID] = z
	if z > r.zCounter {
		r.zCounter = z
	}
	r.mu.Unlock()

	r.writeZ(nodeID, z)
	return nil
}

// Purge drops a node's z-index row and layer membership. Wired to
// node.deleted by the document so deletions never leave stale rows behind.
func (r *Registry) Purge(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.zIndex, nodeID)
	if layerID, ok := r.membership[nodeID]; ok {
		if l, exists := r.layers[layerID]; exists {
			delete(l.nodes, nodeID)
		}
		delete(r.membership, nodeID)
	}
	delete(r.layers[r.defaultID].nodes, nodeID)
}

// writeZ pushes the new index onto the stored node and announces it.
func (r *Registry) writeZ(nodeID string, z int) {
	if r.nodes != nil {
		r.nodes.SetZIndex(nodeID, z)
	}
	r.emit(events.TopicZOrderChanged, events.ZOrderChanged{NodeID: nodeID, ZIndex: z})
}
