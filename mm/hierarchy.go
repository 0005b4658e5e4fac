package mm

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// hierarchy is one connected component of the base graph as of the Finalize
// that built it. Rebuilding a component always produces a fresh hierarchy,
// which is how tables notice that their bounds moved.
type hierarchy struct {
	classes  []*Class // topological order, bases first
	concrete []*Class // non-abstract classes in topological order
	slots    int      // row slots handed out to (table, dimension) pairs
}

func (h *hierarchy) root() *Class { return h.classes[0] }

// allocSlot reserves a row slot on every class of the hierarchy.
func (h *hierarchy) allocSlot() int {
	s := h.slots
	h.slots++
	return s
}

// collectComponent gathers every class reachable from seed through base or
// specializer edges, in registration order.
func collectComponent(seed *Class, visited map[*Class]bool) []*Class {
	var component []*Class
	queue := []*Class{seed}
	visited[seed] = true
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		component = append(component, c)
		for _, next := range c.bases {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
		for _, next := range c.specs {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	sort.Slice(component, func(i, j int) bool { return component[i].seq < component[j].seq })
	return component
}

// topoSort orders nodes so that every class follows all of its bases.
func topoSort(nodes []*Class) ([]*Class, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*Class]int, len(nodes))
	order := make([]*Class, 0, len(nodes))
	var stack []*Class

	var visit func(c *Class) error
	visit = func(c *Class) error {
		switch state[c] {
		case done:
			return nil
		case visiting:
			start := len(stack) - 1
			for stack[start] != c {
				start--
			}
			cycle := append(append([]*Class(nil), stack[start:]...), c)
			return &CycleError{Classes: cycle}
		}
		state[c] = visiting
		stack = append(stack, c)
		for _, b := range c.bases {
			if err := visit(b); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[c] = done
		order = append(order, c)
		return nil
	}

	for _, c := range nodes {
		if err := visit(c); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// buildHierarchy sorts a component, numbers its classes and computes their
// ancestor masks. Nothing is written to the classes unless the sort succeeds.
func buildHierarchy(component []*Class) (*hierarchy, error) {
	order, err := topoSort(component)
	if err != nil {
		return nil, err
	}

	h := &hierarchy{classes: order}
	size := uint(len(order))
	for i, c := range order {
		c.hier = h
		c.index = i
		c.rows = nil
		c.mask = bitset.New(size).Set(uint(i))
		// Bases precede c, so their masks are already final.
		for _, b := range c.bases {
			c.mask.InPlaceUnion(b.mask)
		}
		c.ordinal = -1
		if !c.abstract {
			c.ordinal = len(h.concrete)
			h.concrete = append(h.concrete, c)
		}
		c.dirty = false
	}
	return h, nil
}
