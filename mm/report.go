package mm

// Report describes the dispatch tables of a registry after a Finalize.
// It is an inspection artifact; nothing loads it back into a table.
type Report struct {
	Generation  uint64        `cbor:"generation" json:"generation"`
	Hierarchies int           `cbor:"hierarchies" json:"hierarchies"`
	Tables      []TableReport `cbor:"tables" json:"tables"`
}

// TableReport describes one table.
type TableReport struct {
	Name        string            `cbor:"name" json:"name"`
	Generation  uint64            `cbor:"generation" json:"generation"`
	Rebuilt     bool              `cbor:"rebuilt" json:"rebuilt"`
	Dirty       bool              `cbor:"dirty" json:"dirty"`
	Methods     []string          `cbor:"methods" json:"methods"`
	Dimensions  []DimensionReport `cbor:"dimensions" json:"dimensions"`
	Cells       []CellReport      `cbor:"cells" json:"cells"`
	Ambiguities []CellReport      `cbor:"ambiguities,omitempty" json:"ambiguities,omitempty"`
	Undefined   int               `cbor:"undefined" json:"undefined"`
	Duplicates  []string          `cbor:"duplicates,omitempty" json:"duplicates,omitempty"`
}

// DimensionReport describes one dispatched dimension and its groups.
type DimensionReport struct {
	Position int        `cbor:"position" json:"position"`
	Bound    string     `cbor:"bound" json:"bound"`
	Slot     int        `cbor:"slot" json:"slot"`
	Stride   int        `cbor:"stride" json:"stride"`
	Groups   [][]string `cbor:"groups" json:"groups"`
}

// CellReport describes one cell: its group index along every dimension,
// the resolved method or sentinel, and for ambiguous cells the maximal
// candidates.
type CellReport struct {
	Groups     []int    `cbor:"groups" json:"groups"`
	Method     string   `cbor:"method" json:"method"`
	Candidates []string `cbor:"candidates,omitempty" json:"candidates,omitempty"`
}

// Report describes the current state of every table.
func (r *Registry) Report() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report(0, nil)
}

func (r *Registry) report(hierarchies int, rebuilt map[*Table]bool) *Report {
	rep := &Report{Generation: r.generation, Hierarchies: hierarchies}
	for _, t := range r.tables {
		rep.Tables = append(rep.Tables, t.report(rebuilt[t]))
	}
	return rep
}

func (t *Table) report(rebuilt bool) TableReport {
	tr := TableReport{
		Name:    t.name,
		Rebuilt: rebuilt,
		Dirty:   t.dirty,
		Methods: methodNames(t.methods),
	}
	for _, dup := range t.Duplicates() {
		tr.Duplicates = append(tr.Duplicates, dup.Error())
	}
	dt := t.current.Load()
	if dt == nil {
		return tr
	}
	tr.Generation = dt.gen
	for d, dim := range t.dims {
		dr := DimensionReport{
			Position: dim.position,
			Bound:    dim.bound.name,
			Slot:     dim.slot,
			Stride:   dt.strides[d],
		}
		for _, g := range dt.groups[d] {
			dr.Groups = append(dr.Groups, classNames(g.classes))
		}
		tr.Dimensions = append(tr.Dimensions, dr)
	}
	for offset, m := range dt.cells {
		cell := CellReport{Groups: dt.coordinates(offset), Method: m.String()}
		switch m {
		case Undefined:
			tr.Undefined++
		case Ambiguous:
			cell.Candidates = methodNames(dt.ambiguities[offset])
			tr.Ambiguities = append(tr.Ambiguities, cell)
		}
		tr.Cells = append(tr.Cells, cell)
	}
	return tr
}

// coordinates splits a cell offset into one group index per dimension.
func (dt *dispatchTable) coordinates(offset int) []int {
	coords := make([]int, len(dt.groups))
	for d := len(dt.groups) - 1; d >= 0; d-- {
		coords[d] = offset / dt.strides[d]
		offset %= dt.strides[d]
	}
	return coords
}
