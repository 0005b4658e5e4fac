package mm

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// group is a set of concrete classes that, along one dimension, are
// covered by exactly the same methods.
type group struct {
	mask    *bitset.BitSet // methods applicable along this dimension
	classes []*Class
}

// resolver fills the dispatch table of one Table.
//
// Work is done dimension by dimension: classes are first partitioned into
// groups per dimension, then the candidate set is narrowed group by group,
// so the number of resolutions is the product of the group counts rather
// than of the class counts.
type resolver struct {
	table       *Table
	methods     []*Method
	grouping    bool
	groups      [][]group
	strides     []int
	cells       []*Method
	ambiguities map[int][]*Method
}

func newResolver(t *Table, grouping bool) *resolver {
	return &resolver{
		table:       t,
		methods:     t.methods,
		grouping:    grouping,
		groups:      make([][]group, len(t.dims)),
		strides:     make([]int, len(t.dims)),
		ambiguities: make(map[int][]*Method),
	}
}

// resolve builds a dispatch table for generation gen and binds the rows of
// every participating class to it.
func (rs *resolver) resolve(gen uint64) (*dispatchTable, error) {
	if err := rs.check(); err != nil {
		return nil, err
	}

	rs.makeGroups()
	rs.makeTable()
	if len(rs.cells) > 0 {
		all := bitset.New(uint(len(rs.methods)))
		for i := range rs.methods {
			all.Set(uint(i))
		}
		rs.fill(0, all, 0)
	}
	rs.assignNext()

	dt := &dispatchTable{
		gen:         gen,
		strides:     rs.strides,
		groups:      rs.groups,
		cells:       rs.cells,
		ambiguities: rs.ambiguities,
	}
	rs.bindRows(dt)

	log.Debugf("%s: resolved %d methods into %d cells (%d ambiguous)",
		rs.table.name, len(rs.methods), len(rs.cells), len(rs.ambiguities))
	return dt, nil
}

// check verifies that every method bound lies under its dimension's bound.
func (rs *resolver) check() error {
	for _, m := range rs.methods {
		for d, b := range m.bounds {
			bound := rs.table.dims[d].bound
			if !b.ConformsTo(bound) {
				return fmt.Errorf("%s: method %s: parameter %d: %s does not conform to %s: %w",
					rs.table.name, m.name, d, b.name, bound.name, ErrBoundMismatch)
			}
		}
	}
	return nil
}

// makeGroups partitions, for every dimension, the concrete classes
// conforming to the dimension's bound by their applicable-method mask.
// Groups are numbered in order of first appearance in topological order.
func (rs *resolver) makeGroups() {
	for d, dim := range rs.table.dims {
		var groups []group
		byMask := make(map[string]int)
		for _, c := range dim.bound.hier.concrete {
			if !c.ConformsTo(dim.bound) {
				continue
			}
			mask := bitset.New(uint(len(rs.methods)))
			for j, m := range rs.methods {
				if c.ConformsTo(m.bounds[d]) {
					mask.Set(uint(j))
				}
			}
			if rs.grouping {
				key := mask.String()
				if g, ok := byMask[key]; ok {
					groups[g].classes = append(groups[g].classes, c)
					continue
				}
				byMask[key] = len(groups)
			}
			groups = append(groups, group{mask: mask, classes: []*Class{c}})
		}
		rs.groups[d] = groups
		log.Debugf("%s: dimension %d (%s): %d groups", rs.table.name, d, dim.bound.name, len(groups))
	}
}

// makeTable computes strides, dimension 0 varying fastest, and allocates
// the cell buffer.
func (rs *resolver) makeTable() {
	size := 1
	for d, groups := range rs.groups {
		rs.strides[d] = size
		size *= len(groups)
	}
	rs.cells = make([]*Method, size)
}

// fill narrows candidates along dimension dim for every group, and records
// the winner of each group combination once the last dimension is reached.
func (rs *resolver) fill(dim int, candidates *bitset.BitSet, offset int) {
	last := dim == len(rs.groups)-1
	for g, grp := range rs.groups[dim] {
		narrowed := candidates.Intersection(grp.mask)
		at := offset + g*rs.strides[dim]
		if !last {
			rs.fill(dim+1, narrowed, at)
			continue
		}
		best := mostSpecific(rs.applicable(narrowed))
		rs.cells[at] = pick(best)
		if len(best) > 1 {
			rs.ambiguities[at] = best
		}
	}
}

func (rs *resolver) applicable(candidates *bitset.BitSet) []*Method {
	methods := make([]*Method, 0, candidates.Count())
	for i, ok := candidates.NextSet(0); ok; i, ok = candidates.NextSet(i + 1) {
		methods = append(methods, rs.methods[i])
	}
	return methods
}

// assignNext links every method to the best of the methods it strictly
// specializes.
func (rs *resolver) assignNext() {
	for _, m := range rs.methods {
		var general []*Method
		for _, o := range rs.methods {
			if m.moreSpecific(o) {
				general = append(general, o)
			}
		}
		m.next = pick(mostSpecific(general))
	}
}

// bindRows allocates row slots where the bound's hierarchy changed and
// writes every class's group index into its row.
func (rs *resolver) bindRows(dt *dispatchTable) {
	for d := range rs.table.dims {
		dim := &rs.table.dims[d]
		if dim.hier != dim.bound.hier {
			dim.hier = dim.bound.hier
			dim.slot = dim.hier.allocSlot()
		}
		for g, grp := range rs.groups[d] {
			for _, c := range grp.classes {
				c.setRow(dim.slot, g, dt.gen)
			}
		}
	}
}
